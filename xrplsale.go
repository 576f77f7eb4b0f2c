// Package xrplsale provides a client for the XRPL.Sale launchpad API:
// https://docs.xrpl.sale/api
//
// Features:
// - Wallet challenge-response authentication with single-flight session renewal.
// - Retries with capped exponential backoff that honour Retry-After.
// - Typed services for projects, investments, analytics and webhooks, with iterator-based traversal.
// - Constant-time HMAC-SHA256 verification of inbound webhooks.
package xrplsale
