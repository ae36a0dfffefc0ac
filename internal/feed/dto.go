package feed

import (
	"time"

	"github.com/newsflow/newsflow/internal/models"
)

// UserView is the identity snapshot embedded in feed responses
type UserView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostView is a single feed entry with its author resolved
type PostView struct {
	ID        int64     `json:"id"`
	User      *UserView `json:"user"`
	Content   string    `json:"content"`
	MediaURLs []string  `json:"mediaUrls"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedResponse is one page of a user's feed. HasMore is a heuristic: it is
// set when the page came back full, inferring more data is likely available.
type FeedResponse struct {
	Posts      []*PostView `json:"posts"`
	NextCursor *int64      `json:"nextCursor,omitempty"`
	HasMore    bool        `json:"hasMore"`
}

func newUserView(user *models.User) *UserView {
	if user == nil {
		return nil
	}
	return &UserView{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

func newPostView(post *models.Post, author *models.User) *PostView {
	return &PostView{
		ID:        post.ID,
		User:      newUserView(author),
		Content:   post.Content,
		MediaURLs: post.MediaURLs(),
		CreatedAt: post.CreatedAt,
	}
}
