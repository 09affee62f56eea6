package domain

// ExperimentType classifies what an A/B experiment varies.
type ExperimentType string

const (
	ExperimentPrice     ExperimentType = "PRICE"
	ExperimentTitle     ExperimentType = "TITLE"
	ExperimentThumbnail ExperimentType = "THUMBNAIL"
	ExperimentCopy      ExperimentType = "COPY"
	ExperimentSourcing  ExperimentType = "SOURCING"
	ExperimentDelivery  ExperimentType = "DELIVERY"
)

// AllExperimentTypes lists every experiment type in a stable order.
var AllExperimentTypes = []ExperimentType{
	ExperimentPrice,
	ExperimentTitle,
	ExperimentThumbnail,
	ExperimentCopy,
	ExperimentSourcing,
	ExperimentDelivery,
}

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	ExperimentRunning  ExperimentStatus = "RUNNING"
	ExperimentComplete ExperimentStatus = "COMPLETE"
)

// ExperimentWinner identifies the winning variant, if any.
type ExperimentWinner string

const (
	WinnerA   ExperimentWinner = "A"
	WinnerB   ExperimentWinner = "B"
	WinnerTie ExperimentWinner = "TIE"
)

// Experiment represents a two-variant pricing/merchandising experiment.
// Corresponds to experiments table in PostgreSQL.
type Experiment struct {
	ExperimentID string // PRIMARY KEY, uuid
	Type         ExperimentType
	Name         string
	VariantA     string // human-readable description of the control
	VariantB     string // human-readable description of the challenger

	// Per-variant observed outcome samples (e.g. margin or CTR).
	SamplesA int
	SamplesB int
	MeanA    float64
	MeanB    float64
	StdDevA  float64
	StdDevB  float64

	Status    ExperimentStatus
	Winner    ExperimentWinner // empty until COMPLETE
	Lift      float64          // (MeanB - MeanA) / |MeanA|
	PValue    float64          // approximate, bucketed from the t-statistic
	Reasoning string

	StartedAt   int64 // ms
	CompletedAt int64 // ms, 0 while RUNNING
	CreatedAt   int64
}
