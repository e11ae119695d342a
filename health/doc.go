// Package health tracks per-source success/failure history and aggregates
// it into a usability verdict. The verdict deliberately separates "did the
// last probe succeed" from "should the source still be considered usable":
// a source stays usable while its failures remain inside the configured
// error budget and its last success is recent enough.
package health
