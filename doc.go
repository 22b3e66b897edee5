// Package abess selects the best subset of predictors for generalized linear and Cox
// models by adaptive best-subset splicing.
//
// For each candidate support size the solver searches for the active set that minimizes
// the family loss, swapping weak active predictors for strong inactive ones until no
// exchange lowers the loss enough. The candidates along the support-size path are then
// compared by an information criterion (AIC, BIC, EBIC, GIC) or by K-fold
// cross-validation, and the winner is reported on the original scale of the predictors.
//
// # Families
//
// Gaussian (least squares), Binomial (logistic), Poisson (log link) and Cox proportional
// hazards (Breslow partial likelihood). Cox models need an event status vector passed
// with data.WithStatus.
//
// # Quick Start
//
//	s := abess.New(
//	    abess.WithFamily(family.Gaussian),
//	    abess.WithIC(metrics.BIC),
//	)
//	res, err := s.Fit(ctx, X, y)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Active, res.Coef)
//
//	pred, err := s.Predict(Xnew)
//
// # Tuning
//
// Support sizes default to 1..min(p, n/log n). WithSupportSizes or WithSupportRange
// override them; WithLambdas adds a ridge penalty grid crossed with the sizes. WithPath
// switches between fitting every size and a golden-section search. WithCV replaces the
// information criterion by cross-validated held-out loss. WithScreeningSize restricts the
// search to the predictors with the largest marginal utility.
//
// # Errors
//
// Every error maps to a kind through errors.KindOf in package pkg/errors. A model that
// hit an iteration cap is kept, flagged as not converged and reported through
// errors.Warn.
//
// # Logging
//
// The solver logs through pkg/log, which writes JSON with zerolog to stderr at warn
// level by default:
//
//	log.SetLevel(log.LevelDebug)
package abess
