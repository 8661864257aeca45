// Package cloud is the REST client for the printer vendor's cloud.
//
// It resolves the account profile and bound printers at startup, looks up
// print tasks and downloads cover images for the job correlator, and turns
// the account token into broker credentials for the printer link.
package cloud
