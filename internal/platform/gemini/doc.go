// Package gemini implements generation.Generator on top of Google's Gemini
// API through the google.golang.org/genai client.
//
// The generator renders a prompt from the content description, the requested
// difficulty and item modes, asks the model for a JSON array of review items
// and decodes the answer with generation.ParseItems. Transport failures are
// retried with exponential backoff and jitter; blocked or empty answers are
// not retried.
//
// NewFromConfig returns generation.MockGenerator when no API key is
// configured, so the service runs without external access.
package gemini
