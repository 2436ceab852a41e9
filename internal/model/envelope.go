package model

import "encoding/json"

// Commands understood by the settings endpoint.
const (
	CommandLoad = "load"
	CommandSave = "save"
)

// Message is a single notification or error line shown by the admin page.
type Message struct {
	Content string `json:"content"`
}

// Request is the body posted by the admin page.
type Request struct {
	Command   string `json:"command"`
	AdminData Bag    `json:"adminData"`
}

// Response is returned for every settings call, successful or not.
type Response struct {
	AdminData Bag             `json:"adminData"`
	Messages  []Message       `json:"messages"`
	Errors    []Message       `json:"errors"`
	Time      int64           `json:"time"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// NewResponse returns an empty response stamped with unix time t.
func NewResponse(t int64) *Response {
	return &Response{
		AdminData: Bag{},
		Messages:  []Message{},
		Errors:    []Message{},
		Time:      t,
	}
}

// AddError appends an error line.
func (r *Response) AddError(content string) {
	r.Errors = append(r.Errors, Message{Content: content})
}

// AddMessage appends a notification line.
func (r *Response) AddMessage(content string) {
	r.Messages = append(r.Messages, Message{Content: content})
}
