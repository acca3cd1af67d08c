// Package generation defines the boundary between the scheduling service and
// the language models that produce review variants from content descriptions.
// The Generator interface is implemented by the Gemini adapter in
// platform/gemini and by MockGenerator, which is used when no model is
// configured.
package generation
