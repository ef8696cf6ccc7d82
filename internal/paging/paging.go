package paging

import (
	"fmt"
	"strconv"

	"pollhub/internal/platform/apperr"
)

const (
	DefaultPage = 0
	DefaultSize = 30
	MaxPageSize = 50
)

// Order is one sort criterion, e.g. {Field: "createdAt", Desc: true}.
type Order struct {
	Field string
	Desc  bool
}

type Sort []Order

// ByCreatedAtDesc is the ordering every listing endpoint uses.
var ByCreatedAtDesc = Sort{{Field: "createdAt", Desc: true}}

// Pageable is a validated page request. Construct via NewPageable or
// FromQuery; the zero value is not valid.
type Pageable struct {
	Page int
	Size int
}

func NewPageable(page, size int) (Pageable, error) {
	if page < 0 {
		return Pageable{}, apperr.BadRequest("invalid_paging", "page must be >= 0", nil)
	}
	if size < 1 {
		return Pageable{}, apperr.BadRequest("invalid_paging", "page size must be at least 1", nil)
	}
	if size > MaxPageSize {
		return Pageable{}, apperr.BadRequest("invalid_paging",
			fmt.Sprintf("page size must not be greater than %d", MaxPageSize), nil)
	}
	return Pageable{Page: page, Size: size}, nil
}

// FromQuery builds a Pageable from raw query values, applying the defaults
// when a value is absent.
func FromQuery(pageStr, sizeStr string) (Pageable, error) {
	page := DefaultPage
	size := DefaultSize

	if pageStr != "" {
		v, err := strconv.Atoi(pageStr)
		if err != nil {
			return Pageable{}, apperr.BadRequest("invalid_paging", "page must be an integer", err)
		}
		page = v
	}
	if sizeStr != "" {
		v, err := strconv.Atoi(sizeStr)
		if err != nil {
			return Pageable{}, apperr.BadRequest("invalid_paging", "size must be an integer", err)
		}
		size = v
	}

	return NewPageable(page, size)
}

func (p Pageable) Limit() int  { return p.Size }
func (p Pageable) Offset() int { return p.Page * p.Size }

// Page is a window over a larger result set.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"isLast"`
}

// NewPage wraps content in page metadata. totalPages is ceil(total/size)
// and isLast is number >= totalPages-1, both zero-based.
func NewPage[T any](content []T, p Pageable, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := int((total + int64(p.Size) - 1) / int64(p.Size))
	return Page[T]{
		Content:       content,
		Number:        p.Page,
		Size:          p.Size,
		TotalElements: total,
		TotalPages:    totalPages,
		Last:          p.Page >= totalPages-1,
	}
}
