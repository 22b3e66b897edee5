package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator, e.g. "Solver".
	ModelNameKey = "model.name"

	// OperationKey names the running operation. See the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work, e.g. "splicing".
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: training, validation or inference.
	PhaseKey = "ml.phase"

	// FamilyKey is the loss family: gaussian, binomial, poisson or cox.
	FamilyKey = "model.family"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// ScreenedKey is the number of features kept by screening.
	ScreenedKey = "data.screened"

	// FoldKey is the zero-based cross-validation fold.
	FoldKey = "data.fold"
)

// Search and fit progress.
const (
	// SupportSizeKey is the target support size k.
	SupportSizeKey = "search.support_size"

	// LambdaKey is the ridge penalty of the current candidate.
	LambdaKey = "search.lambda"

	// ExchangeKey is the number of features swapped in a splicing trial.
	ExchangeKey = "search.exchange"

	// CandidatesKey is the number of models on the path.
	CandidatesKey = "search.candidates"

	// CriterionKey names the tuning criterion (aic, bic, ebic, gic, cv).
	CriterionKey = "search.criterion"

	IterationKey  = "training.iteration"
	LossKey       = "metrics.loss"
	ScoreKey      = "metrics.score"
	DurationMsKey = "perf.duration_ms"
)

// Error context.
const (
	ErrorTypeKey = "error.type"
	ErrorKindKey = "error.kind"
)

// Standard values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScreen  = "screen"
	OperationSplice  = "splice"
	OperationPath    = "path"
	OperationSelect  = "select"
	OperationScore   = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
