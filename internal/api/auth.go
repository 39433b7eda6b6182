package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const (
	apiLoginPath    = "/api/auth/login/"
	apiRefreshPath  = "/api/auth/refresh/"
	apiMePath       = "/api/auth/me/"
	apiRegisterPath = "/api/auth/register/"
)

func (c *Client) Login(ctx context.Context, username, password string) (*Tokens, error) {
	req, err := jsonRequest(http.MethodPost, apiLoginPath, map[string]string{
		"username": username,
		"password": password,
	}, false)
	if err != nil {
		return nil, err
	}

	var tokens Tokens
	if err := c.do(ctx, req, &tokens); err != nil {
		return nil, err
	}

	if tokens.Access == "" {
		return nil, fmt.Errorf("login: backend returned no access token")
	}

	return &tokens, nil
}

// RefreshAccess exchanges a refresh token for a new access token. The
// backend may rotate the refresh token too.
func (c *Client) RefreshAccess(ctx context.Context, refresh string) (*Tokens, error) {
	req, err := jsonRequest(http.MethodPost, apiRefreshPath, map[string]string{"refresh": refresh}, false)
	if err != nil {
		return nil, err
	}

	var tokens Tokens
	if err := c.do(ctx, req, &tokens); err != nil {
		return nil, err
	}

	if tokens.Access == "" {
		return nil, fmt.Errorf("refresh: backend returned no access token")
	}

	return &tokens, nil
}

func (c *Client) Register(ctx context.Context, reg *Registration) (*Profile, error) {
	req, err := jsonRequest(http.MethodPost, apiRegisterPath, reg, false)
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := c.do(ctx, req, &profile); err != nil {
		return nil, err
	}

	if profile.Role == "" {
		profile.Role = reg.Role
	}

	return &profile, nil
}

func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, &request{method: http.MethodGet, path: apiMePath, auth: true}, &profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

// UpdateMe patches the profile. A local avatar file is uploaded as
// multipart form data; everything else goes as JSON.
func (c *Client) UpdateMe(ctx context.Context, update *ProfileUpdate) (*Profile, error) {
	if update == nil {
		return nil, fmt.Errorf("profile update is required")
	}

	var (
		req *request
		err error
	)
	if update.AvatarFile != "" {
		req, err = multipartProfileRequest(update)
	} else {
		req, err = jsonRequest(http.MethodPatch, apiMePath, jsonProfilePayload(update), true)
	}
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := c.do(ctx, req, &profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

func jsonProfilePayload(u *ProfileUpdate) map[string]any {
	payload := make(map[string]any)
	for key, val := range profileFields(u) {
		payload[key] = val
	}

	if u.ExperienceYears != nil {
		payload["experience_years"] = *u.ExperienceYears
	}

	switch {
	case u.ClearAvatar:
		payload["avatar"] = nil
	case u.AvatarURL != nil:
		payload["avatar"] = *u.AvatarURL
	}

	return payload
}

func multipartProfileRequest(u *ProfileUpdate) (*request, error) {
	fields := profileFields(u)
	if u.ExperienceYears != nil {
		fields["experience_years"] = strconv.Itoa(*u.ExperienceYears)
	}

	body, ct, err := multipartBody(fields, "avatar", u.AvatarFile)
	if err != nil {
		return nil, fmt.Errorf("building profile form: %w", err)
	}

	return &request{
		method:      http.MethodPatch,
		path:        apiMePath,
		body:        body,
		contentType: ct,
		auth:        true,
	}, nil
}

func profileFields(u *ProfileUpdate) map[string]string {
	fields := make(map[string]string)
	set := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}

	set("name", u.Name)
	set("email", u.Email)
	set("skills", u.Skills)
	set("bio", u.Bio)
	set("company_name", u.CompanyName)
	set("position_title", u.PositionTitle)

	return fields
}

// MarshalProfile is used by the session store to persist the profile.
func MarshalProfile(p *Profile) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func UnmarshalProfile(s string) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
