package handlers

import "time"

// RegisterRequest creates an account.
type RegisterRequest struct {
	Body struct {
		Username string `doc:"Unique username"   example:"alice"  json:"username"`
		Password string `doc:"Account password"  example:"s3cret" json:"password"`
	}
}

// ChangePasswordRequest replaces an account password.
type ChangePasswordRequest struct {
	Body struct {
		Username    string `doc:"Account username"  example:"alice"   json:"username"`
		OldPassword string `doc:"Current password"  example:"s3cret"  json:"old_password"`
		NewPassword string `doc:"Replacement password" example:"n3w-pw" json:"new_password"`
	}
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Body struct {
		Username string `doc:"Account username" example:"alice"  json:"username"`
		Password string `doc:"Account password" example:"s3cret" json:"password"`
	}
}

// LoginResponse carries a bearer token.
type LoginResponse struct {
	Body struct {
		Token     string `doc:"Bearer token for the Authorization header" json:"token"`
		ExpiresIn int64  `doc:"Token lifetime in seconds" example:"3600"    json:"expires_in"`
	}
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// CreateLinkRequest shortens a URL.
type CreateLinkRequest struct {
	Body struct {
		Value string `doc:"The URL to shorten" example:"https://example.com/very/long/path" json:"value"`
	}
}

// CreateLinkResponse is the response for a successfully created link.
type CreateLinkResponse struct {
	Location string `doc:"The short URL location" header:"Location"`
	Body     struct {
		ID       string `doc:"The short id"       example:"2Yb3kx"                       json:"id"`
		ShortURL string `doc:"The full short URL" example:"http://localhost:8888/2Yb3kx" json:"shortUrl"`
	}
}

// LinkIDRequest addresses a single link.
type LinkIDRequest struct {
	ID string `doc:"The short id" example:"2Yb3kx" path:"id"`
}

// RedirectResponse points the client at the link target.
type RedirectResponse struct {
	Status   int
	Location string `doc:"The target URL" header:"Location"`
	Body     struct {
		Value string `doc:"The target URL" json:"value"`
	}
}

// UpdateLinkRequest changes the target of a link.
type UpdateLinkRequest struct {
	ID   string `doc:"The short id" example:"2Yb3kx" path:"id"`
	Body struct {
		URL string `doc:"The new target URL" example:"https://example.com/other" json:"url"`
	}
}

// StatsResponse reports access statistics of a link.
type StatsResponse struct {
	Body struct {
		Clicks       int64      `doc:"Number of redirects served" json:"clicks"`
		CreatedAt    time.Time  `doc:"Creation time"              json:"created_at"`
		LastAccessed *time.Time `doc:"Time of the last redirect"  json:"last_accessed"`
	}
}

// ListLinksResponse lists the caller's short ids.
type ListLinksResponse struct {
	Body struct {
		URLs []string `doc:"Short ids owned by the caller" json:"urls"`
	}
}
