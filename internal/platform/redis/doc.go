// Package redis holds the local copy of each learner's forgetting rate.
//
// LambdaCache keeps rates in Redis under a configurable key prefix. When no
// Redis address is configured, NewLocalLambdaStore returns an in-process map
// with the same contract, so a single instance runs without Redis. Both
// implement store.LambdaStore and report misses as store.ErrUserLambdaNotFound.
package redis
