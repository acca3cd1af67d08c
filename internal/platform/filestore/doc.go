// Package filestore keeps model coefficients and training datasets in YAML
// files for deployments without a database and for the offline trainer.
package filestore
