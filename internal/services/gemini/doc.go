// Package gemini implements the prediction and discovery capabilities on top
// of the Gemini generateContent API.
//
// Responses are requested as structured JSON and validated at this boundary;
// malformed shapes convert to UpstreamError or DiscoveryError rather than
// propagating untyped data inward. A missing API key surfaces uniformly as
// ErrUnavailable.
package gemini
