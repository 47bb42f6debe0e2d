// Package llm contains adapters for invoking large language models during
// bill-split negotiations. It abstracts away provider-specific APIs and
// normalizes the request/response lifecycle for the negotiation orchestrator.
package llm
