package marketplace

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// fastConfig avoids blocking on the rate limiter inside tests.
func fastConfig() Config {
	return Config{
		Marketplace:       domain.MarketplaceG2G,
		MaxTitleLen:       40,
		MaxDescriptionLen: 200,
		Categories:        []domain.InventoryKind{domain.KindKey, domain.KindGiftCard},
		RequestsPerMinute: 600000,
	}
}

func validRequest() CreateRequest {
	return CreateRequest{
		SKU:         "sku-1",
		Kind:        domain.KindKey,
		Title:       "Elden Ring Steam Key",
		Description: "Global key, instant delivery.",
		Price:       34.99,
	}
}

func TestCreateListing_RoundTripPrice(t *testing.T) {
	ctx := context.Background()
	client := NewClient(fastConfig(), NewFakeAdapter(domain.MarketplaceG2G, 1), nil)

	variantID, err := client.CreateListing(ctx, validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, variantID)

	status, err := client.GetListingStatus(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingActive, status.Status)
	assert.Equal(t, 34.99, status.Price, "fetched price must reflect what was set")

	require.NoError(t, client.UpdatePrice(ctx, variantID, 29.99))
	status, err = client.GetListingStatus(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 29.99, status.Price)
}

func TestCreateListing_ValidationFailsClosed(t *testing.T) {
	ctx := context.Background()
	client := NewClient(fastConfig(), NewFakeAdapter(domain.MarketplaceG2G, 1), nil)

	req := validRequest()
	req.Kind = domain.KindDomain
	_, err := client.CreateListing(ctx, req)
	assert.ErrorIs(t, err, ErrUnsupportedCategory)

	req = validRequest()
	req.Title = strings.Repeat("x", 41)
	_, err = client.CreateListing(ctx, req)
	assert.ErrorIs(t, err, ErrTitleTooLong)

	req = validRequest()
	req.Description = strings.Repeat("x", 201)
	_, err = client.CreateListing(ctx, req)
	assert.ErrorIs(t, err, ErrDescriptionTooLong)

	req = validRequest()
	req.Price = 0
	_, err = client.CreateListing(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestUpdatePrice_RejectsNonPositive(t *testing.T) {
	client := NewClient(fastConfig(), NewFakeAdapter(domain.MarketplaceG2G, 1), nil)
	assert.ErrorIs(t, client.UpdatePrice(context.Background(), "v", -1), ErrInvalidPrice)
}

func TestDeleteListing(t *testing.T) {
	ctx := context.Background()
	client := NewClient(fastConfig(), NewFakeAdapter(domain.MarketplaceG2G, 1), nil)

	variantID, err := client.CreateListing(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, client.DeleteListing(ctx, variantID))
	_, err = client.GetListingStatus(ctx, variantID)
	assert.Error(t, err)
}

func TestSendMessage_Recorded(t *testing.T) {
	fake := NewFakeAdapter(domain.MarketplaceG2G, 1)
	client := NewClient(fastConfig(), fake, nil)

	require.NoError(t, client.SendMessage(context.Background(), "buyer-1", "Your key", "ABCD-EFGH"))
	msgs := fake.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "buyer-1", msgs[0].BuyerRef)
}

func TestFakeAdapter_SeededFailuresAreDeterministic(t *testing.T) {
	ctx := context.Background()

	run := func() []bool {
		fake := NewFakeAdapter(domain.MarketplaceG2G, 42)
		fake.FailureRate = 0.5
		client := NewClient(fastConfig(), fake, nil)

		var outcomes []bool
		for i := 0; i < 4; i++ {
			_, err := client.CreateListing(ctx, validRequest())
			outcomes = append(outcomes, err == nil)
		}
		return outcomes
	}

	assert.Equal(t, run(), run())
}
