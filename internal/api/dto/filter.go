package dto

import (
	"strconv"
	"strings"
	"time"

	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/store"
)

// ArticleFilterParams are the article filter query parameters shared by
// listing, search and export.
type ArticleFilterParams struct {
	IsFavorite    string    `query:"is_favorite" enum:"true,false" doc:"Only favorites (true) or non-favorites (false)"`
	IsArchived    string    `query:"is_archived" enum:"true,false" doc:"Only archived (true) or active (false) articles"`
	PublicAccount string    `query:"public_account" maxLength:"200" doc:"Exact public account name"`
	Author        string    `query:"author" maxLength:"200" doc:"Exact author name"`
	Tag           string    `query:"tag" maxLength:"50" doc:"Tag name the article must carry"`
	CreatedFrom   time.Time `query:"created_from" doc:"Earliest creation time (RFC 3339)"`
	CreatedTo     time.Time `query:"created_to" doc:"Latest creation time (RFC 3339)"`
}

// ToStore converts the parameters to a store filter.
func (p ArticleFilterParams) ToStore() (store.ArticleFilter, error) {
	f := store.ArticleFilter{
		PublicAccount: strings.TrimSpace(p.PublicAccount),
		Author:        strings.TrimSpace(p.Author),
		Tag:           strings.TrimSpace(p.Tag),
	}

	var err error
	if f.IsFavorite, err = optionalBool("is_favorite", p.IsFavorite); err != nil {
		return f, err
	}
	if f.IsArchived, err = optionalBool("is_archived", p.IsArchived); err != nil {
		return f, err
	}
	if !p.CreatedFrom.IsZero() {
		f.CreatedFrom = &p.CreatedFrom
	}
	if !p.CreatedTo.IsZero() {
		f.CreatedTo = &p.CreatedTo
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedTo.Before(*f.CreatedFrom) {
		return f, apperr.ValidationWithDetails("created_to is before created_from",
			map[string]string{"created_to": "must not be before created_from"})
	}
	return f, nil
}

func optionalBool(name, raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.ValidationWithDetails(name+" must be true or false", map[string]string{name: "must be true or false"})
	}
	return &v, nil
}
