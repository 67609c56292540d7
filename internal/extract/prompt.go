package extract

import "fmt"

// systemPrompt is the shared instruction for both extraction providers.
const systemPrompt = `You are a data extraction specialist for a food truck directory.

You are given the markdown content of a web page. Extract structured data about the food truck the page describes.

Rules:
- Answer ONLY based on information present in the provided page
- Return valid JSON and nothing else — no markdown fences, no commentary
- Use null for any field the page does not state
- If the page does not describe a food truck, food trailer, or mobile food vendor, return {"name": null}
- Prices may be copied as written ("$12.50") or as plain numbers
- Operating hours use lowercase day names ("monday"..."sunday") with "open"/"close" in 24h HH:MM, or {"closed": true}
- Social media keys: instagram, facebook, twitter, tiktok, yelp`

// responseSchema documents the expected JSON shape for the model.
const responseSchema = `{
  "name": "string or null",
  "description": "string or null",
  "current_location": {"lat": 0.0, "lng": 0.0, "address": "string", "city": "string", "state": "string", "zip_code": "string", "raw_text": "string"},
  "scheduled_locations": [{"address": "string", "start_time": "string", "end_time": "string"}],
  "operating_hours": {"monday": {"open": "HH:MM", "close": "HH:MM", "closed": false}},
  "menu": [{"name": "category", "items": [{"name": "string", "description": "string", "price": "string or number", "dietary_tags": ["string"]}]}],
  "contact_info": {"phone": "string", "email": "string", "website": "string"},
  "social_media": {"instagram": "string"},
  "cuisine_type": ["string"],
  "price_range": "$ | $$ | $$$ | $$$$",
  "specialties": ["string"]
}`

// BuildPrompt constructs the single-shot user prompt for providers without a
// separate system channel.
func BuildPrompt(page *Page) string {
	return fmt.Sprintf(`%s

JSON schema (omit fields the page does not state, or use null):
%s

Page URL: %s
Page content:
%s`, systemPrompt, responseSchema, page.URL, page.Markdown)
}

// BuildUserMessage constructs the user message for providers that take the
// system prompt separately.
func BuildUserMessage(page *Page) string {
	return fmt.Sprintf(`JSON schema (omit fields the page does not state, or use null):
%s

Page URL: %s
Page content:
%s`, responseSchema, page.URL, page.Markdown)
}
