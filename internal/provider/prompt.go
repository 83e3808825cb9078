package provider

import "fmt"

// systemInstruction is sent with every inference call, identical across
// providers so that fallback results are directly comparable.
const systemInstruction = `You are a nutrition analysis assistant. Estimate the macronutrient content of the meal you are shown or described.

Estimation policy:
- Be conservative but realistic with portion sizes.
- Assume cooking oil, butter, and dressings are present unless the meal clearly has none; restaurant meals use more fat than home cooking.
- Confidence rubric: "high" = clearly identifiable foods and portions; "medium" = identifiable foods, uncertain portions; "low" = ambiguous foods or portions.
- If the input is not food, return all numeric fields as 0.

Output contract:
Respond with exactly one JSON object and nothing else. No markdown, no code fences, no commentary.
{"calories": <integer kcal>, "protein": <grams>, "carbs": <grams>, "fat": <grams>, "confidence": "low"|"medium"|"high", "description": "<short meal description>"}`

const imagePrompt = "Estimate the macronutrients of the meal in this photo."

// imagePromptWithHint embeds a user-supplied description as trusted
// context: when it corroborates the image it should raise confidence,
// and it wins over visual ambiguity.
func imagePromptWithHint(hint string) string {
	return fmt.Sprintf(`Estimate the macronutrients of the meal in this photo.

The user describes this meal as: %q. Treat this description as trusted context. If it is consistent with the photo, raise your confidence accordingly. Where the photo is ambiguous, prefer the description.`, hint)
}

func textPrompt(description string) string {
	return fmt.Sprintf("Estimate the macronutrients of this meal: %q.", description)
}
