package api

// List is a named collection of saved items.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SavedItem is a clipped page as stored by the backend.
type SavedItem struct {
	ID        string   `json:"id,omitempty"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Note      string   `json:"note"`
	Tags      []string `json:"tags"`
	ImageURL  string   `json:"image_url"`
	ListID    string   `json:"list_id"`
	Timestamp string   `json:"timestamp,omitempty"`
	DateAdded string   `json:"date_added,omitempty"`
}

// PageRequest is the body of the summary and tag-suggestion calls.
type PageRequest struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	ExistingTags []string `json:"existing_tags,omitempty"`
}

// ItemFilter narrows GetItems. Empty fields match everything.
type ItemFilter struct {
	List     string
	Tag      string
	Platform string
}

// SaveResult is the backend's reply to SaveItem.
type SaveResult struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	ItemID  string `json:"item_id,omitempty"`
}

// Health is the reply to HealthCheck.
type Health struct {
	Status string `json:"status"`
}

type errorBody struct {
	Error string `json:"error"`
}
