// Package domain – forum and notification models.
//
// Forum posts are stored as one flat collection per topic with an optional
// parent id. The reply tree and nested reply counts are derived by traversal
// (BuildReplyTree), not by recursive back-references on the rows themselves.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ForumTopic is a discussion thread. Posts are cascade-deleted with their
// topic.
type ForumTopic struct {
	ID        string         `json:"id"         gorm:"type:TEXT NOT NULL;primaryKey"`
	Title     string         `json:"title"      gorm:"type:varchar(200);not null"`
	ImageURL  string         `json:"image_url,omitempty" gorm:"type:varchar(500)"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_topic_user"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for ForumTopic.
func (ForumTopic) TableName() string { return "forum_topics" }

// ForumPost is a single message inside a topic. A nil-equivalent (empty)
// ParentID marks a root post; replies reference their parent within the same
// topic.
type ForumPost struct {
	ID        string         `json:"id"         gorm:"type:TEXT NOT NULL;primaryKey"`
	TopicID   string         `json:"topic_id"   gorm:"type:TEXT NOT NULL;index:idx_post_topic,priority:1"`
	ParentID  *string        `json:"parent_id,omitempty" gorm:"type:TEXT;index:idx_post_parent"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_post_topic,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Topic ForumTopic `json:"-" gorm:"foreignKey:TopicID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ForumPost.
func (ForumPost) TableName() string { return "forum_posts" }

// ReplyNode is one node of a derived reply tree.
type ReplyNode struct {
	Post    ForumPost
	Replies []*ReplyNode
}

// TotalReplies counts all descendants of the node, excluding the node itself.
func (n *ReplyNode) TotalReplies() int {
	total := 0
	for _, r := range n.Replies {
		total += 1 + r.TotalReplies()
	}
	return total
}

// BuildReplyTree assembles the reply forest for a topic from its flat post
// slice. Roots are posts without a parent (or whose parent is missing from
// the slice, which can happen after administrative deletion). Sibling order
// follows the input order, so callers should pass posts sorted by CreatedAt.
func BuildReplyTree(posts []ForumPost) []*ReplyNode {
	nodes := make(map[string]*ReplyNode, len(posts))
	for i := range posts {
		nodes[posts[i].ID] = &ReplyNode{Post: posts[i]}
	}

	var roots []*ReplyNode
	for i := range posts {
		n := nodes[posts[i].ID]
		if pid := posts[i].ParentID; pid != nil && *pid != "" {
			if parent, ok := nodes[*pid]; ok {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// Notification is a persisted message for one user about an event on some
// related item (a forum reply, a new voting, etc.). The Type field is a short
// event tag; RelatedID points at the topic or voting, PostID at the concrete
// forum post when applicable.
type Notification struct {
	ID        string    `json:"id"         gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_notification_user"`
	Title     string    `json:"title"      gorm:"type:varchar(200);not null"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	Type      string    `json:"type"       gorm:"type:varchar(50);not null"`
	RelatedID string    `json:"related_id,omitempty" gorm:"type:TEXT"`
	PostID    string    `json:"post_id,omitempty"    gorm:"type:TEXT"`
	IsRead    bool      `json:"is_read"    gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }
