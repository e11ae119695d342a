// Package market holds the shared data model for tradekit: prices, candles,
// collected series, upstream API errors, and credential types.
//
// All upstream sources normalize their vendor payloads into these types so
// the collector, storage, and health layers never see vendor-specific shapes.
package market
