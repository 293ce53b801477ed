package pkg

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

// PageDefaults configures ParsePageRequest for one table.
type PageDefaults struct {
	PageSize    int
	MaxPageSize int
	Sort        string
}

// DefaultPageDefaults is used when a handler passes the zero PageDefaults.
var DefaultPageDefaults = PageDefaults{PageSize: 20, MaxPageSize: 100, Sort: "id:desc"}

// reservedParams are query parameters that never become filters.
var reservedParams = map[string]bool{
	"page":        true,
	"page_size":   true,
	"sort":        true,
	"_csrf_token": true,
}

// validFieldName matches only alphanumeric characters and underscores.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FieldKind says how a filter value is compared to its column.
type FieldKind int

const (
	// FieldText matches exactly, or by substring with the "__like" suffix.
	FieldText FieldKind = iota
	// FieldBool accepts the strconv.ParseBool spellings.
	FieldBool
)

// ParsePageRequest reads page, page_size, sort and every other non-empty
// query parameter as a filter.
func ParsePageRequest(c *gin.Context, d PageDefaults) domain.PageRequest {
	if d.PageSize <= 0 {
		d.PageSize = DefaultPageDefaults.PageSize
	}
	if d.MaxPageSize < d.PageSize {
		d.MaxPageSize = max(d.PageSize, DefaultPageDefaults.MaxPageSize)
	}
	if d.Sort == "" {
		d.Sort = DefaultPageDefaults.Sort
	}

	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.Atoi(c.Query("page_size"))
	if err != nil || pageSize < 1 {
		pageSize = d.PageSize
	}
	pageSize = min(pageSize, d.MaxPageSize)

	sort := strings.TrimSpace(c.Query("sort"))
	if sort == "" {
		sort = d.Sort
	}

	filter := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if reservedParams[key] {
			continue
		}
		if len(values) > 0 {
			if v := strings.TrimSpace(values[0]); v != "" {
				filter[key] = v
			}
		}
	}

	return domain.PageRequest{
		Page:     page,
		PageSize: pageSize,
		Sort:     sort,
		Filter:   filter,
	}
}

// Paginate returns a GORM scope that applies LIMIT and OFFSET.
func Paginate(req domain.PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize)
	}
}

// Sort returns a GORM scope ordering by "field:asc" or "field:desc". Fields
// outside allowed are ignored. A tiebreak on id keeps paging stable.
func Sort(req domain.PageRequest, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		field, direction, ok := strings.Cut(req.Sort, ":")
		if !ok {
			return db
		}
		field = strings.TrimSpace(field)
		direction = strings.ToLower(strings.TrimSpace(direction))

		if direction != "asc" && direction != "desc" {
			return db
		}
		if !validFieldName.MatchString(field) || !isAllowed(field, allowed) {
			return db
		}

		db = db.Order(field + " " + direction)
		if field != "id" && isAllowed("id", allowed) {
			db = db.Order("id " + direction)
		}
		return db
	}
}

// Filter returns a GORM scope applying WHERE conditions for the allowed
// fields. Unknown keys and unparseable values are ignored. A "__like" key
// on a text field matches a substring with LIKE wildcards escaped.
func Filter(req domain.PageRequest, allowed map[string]FieldKind) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for key, value := range req.Filter {
			field, like := strings.CutSuffix(key, "__like")
			if !validFieldName.MatchString(field) {
				continue
			}
			kind, ok := allowed[field]
			if !ok {
				continue
			}

			switch {
			case kind == FieldBool && !like:
				b, err := strconv.ParseBool(value)
				if err != nil {
					continue
				}
				db = db.Where(field+" = ?", b)
			case kind == FieldText && like:
				db = db.Where(field+` LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(value)+"%")
			case kind == FieldText:
				db = db.Where(field+" = ?", value)
			}
		}
		return db
	}
}

// NewPageResult builds a PageResult. TotalPages is at least 1 so pagers
// always have a page to show.
func NewPageResult[T any](items []T, total int64, req domain.PageRequest) *domain.PageResult[T] {
	totalPages := 1
	if req.PageSize > 0 && total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	}

	if items == nil {
		items = []T{}
	}

	return &domain.PageResult[T]{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}
}

func isAllowed(field string, allowed []string) bool {
	return slices.Contains(allowed, field)
}
