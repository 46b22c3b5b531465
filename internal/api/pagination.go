package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"motorsport-api/internal/storage"
)

// DefaultPageSize is used when the handler is not configured with a page size.
const DefaultPageSize = 10

const detailInvalidPage = "Invalid page."

// pageResponse is the envelope for paginated lists.
type pageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type pageRequest struct {
	number int
	size   int
}

func (p pageRequest) storagePage() storage.Page {
	return storage.Page{Limit: p.size, Offset: (p.number - 1) * p.size}
}

func (h *Handler) pageSize() int {
	if h.PageSize > 0 {
		return h.PageSize
	}
	return DefaultPageSize
}

// parsePage reads the page query parameter. Anything other than a positive
// integer is an invalid page.
func (h *Handler) parsePage(r *http.Request) (pageRequest, error) {
	req := pageRequest{number: 1, size: h.pageSize()}
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return req, nil
	}
	if raw == "last" {
		req.number = -1
		return req, nil
	}
	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 {
		return pageRequest{}, newStatusError(http.StatusNotFound, detailInvalidPage)
	}
	req.number = number
	return req, nil
}

// listPage runs a paginated list query, resolving "last" and rejecting pages
// past the end. An empty result set still has a first page.
func listPage[T any, R any](h *Handler, r *http.Request, fetch func(storage.Page) ([]T, int, error), convert func(T) R) (pageResponse[R], error) {
	req, err := h.parsePage(r)
	if err != nil {
		return pageResponse[R]{}, err
	}
	if req.number == -1 {
		_, total, err := fetch(storage.Page{Limit: 1})
		if err != nil {
			return pageResponse[R]{}, err
		}
		req.number = pageCount(total, req.size)
	}
	items, total, err := fetch(req.storagePage())
	if err != nil {
		return pageResponse[R]{}, err
	}
	pages := pageCount(total, req.size)
	if req.number > pages {
		return pageResponse[R]{}, newStatusError(http.StatusNotFound, detailInvalidPage)
	}
	results := make([]R, 0, len(items))
	for _, item := range items {
		results = append(results, convert(item))
	}
	resp := pageResponse[R]{Count: total, Results: results}
	if req.number < pages {
		next := pageURL(r, req.number+1)
		resp.Next = &next
	}
	if req.number > 1 {
		prev := pageURL(r, req.number-1)
		resp.Previous = &prev
	}
	return resp, nil
}

func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// pageURL builds an absolute link to page, dropping the parameter for the
// first page.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]); proto != "" {
		scheme = strings.ToLower(proto)
	}
	query := url.Values{}
	for key, values := range r.URL.Query() {
		query[key] = append([]string(nil), values...)
	}
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}
	link := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: query.Encode()}
	return link.String()
}
