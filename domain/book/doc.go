// Package book implements the limit order book settlement engine.
//
// The book keeps per-price aggregate counters instead of per-order fill
// state: a market fill bumps one counter per touched price level, and
// every resting order derives its own filled amount lazily from the
// level aggregate and the prefix-sum offset it captured at insertion.
package book
