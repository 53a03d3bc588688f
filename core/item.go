package core

import "time"

// Engagement carries the public counters attached to an item. All counters
// default to zero when the upstream layer has not fetched them yet.
type Engagement struct {
	Likes    int `json:"like_count" yaml:"likes"`
	Replies  int `json:"reply_count" yaml:"replies"`
	Views    int `json:"views_count" yaml:"views"`
	Retweets int `json:"retweet_count" yaml:"retweets"`
}

// Item is one element of the ordered upstream list. embedmesh only reads it.
type Item struct {
	ID         string      `json:"id" yaml:"id"`
	ParentID   string      `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	CreatedAt  time.Time   `json:"createdAt" yaml:"createdAt"`
	Engagement *Engagement `json:"engagement,omitempty" yaml:"engagement,omitempty"`
}

// ReplyCount returns the reply counter or zero when engagement is unknown.
func (i Item) ReplyCount() int {
	if i.Engagement == nil {
		return 0
	}
	return i.Engagement.Replies
}

// ViewCount returns the view counter or zero when engagement is unknown.
func (i Item) ViewCount() int {
	if i.Engagement == nil {
		return 0
	}
	return i.Engagement.Views
}
