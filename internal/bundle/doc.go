// Package bundle retrieves a job's artifact bundle: it prepares the
// working directory, downloads the compressed bundle and extracts it.
package bundle
