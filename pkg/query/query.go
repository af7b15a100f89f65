package query

import (
	"fmt"
	"math"
)

// Field 可查询的文章字段，取值为数据库列名
type Field string

const (
	FieldID           Field = "id"
	FieldTitle        Field = "title"
	FieldTagsRef      Field = "tags_ref"
	FieldAuthorID     Field = "author_id"
	FieldCommentCount Field = "comment_count"
	FieldViewCount    Field = "view_count"
	FieldPermalink    Field = "permalink"
	FieldStatus       Field = "status"
	FieldPutTop       Field = "put_top"
	FieldCreated      Field = "created"
	FieldUpdated      Field = "updated"
	FieldRandomDouble Field = "random_double"
	FieldSignID       Field = "sign_id"
	FieldCommentable  Field = "commentable"
)

var fields = map[Field]struct{}{
	FieldID: {}, FieldTitle: {}, FieldTagsRef: {}, FieldAuthorID: {},
	FieldCommentCount: {}, FieldViewCount: {}, FieldPermalink: {}, FieldStatus: {},
	FieldPutTop: {}, FieldCreated: {}, FieldUpdated: {}, FieldRandomDouble: {},
	FieldSignID: {}, FieldCommentable: {},
}

func (f Field) Valid() bool {
	_, ok := fields[f]
	return ok
}

// Operator 过滤条件操作符
type Operator string

const (
	Equal              Operator = "="
	NotEqual           Operator = "<>"
	GreaterThan        Operator = ">"
	GreaterThanOrEqual Operator = ">="
	LessThan           Operator = "<"
	LessThanOrEqual    Operator = "<="
	In                 Operator = "IN"
	Like               Operator = "LIKE"
)

func (o Operator) Valid() bool {
	switch o {
	case Equal, NotEqual, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual, In, Like:
		return true
	}
	return false
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Unbounded 作为 pageSize 传入时表示不分页，一页返回全部
const Unbounded = 0

type Filter struct {
	Field Field
	Op    Operator
	Value any
}

type Sort struct {
	Field     Field
	Direction Direction
}

// Query 过滤、排序、分页条件，多个 Filter 之间为 AND
type Query struct {
	filters  []Filter
	sorts    []Sort
	pageNum  int
	pageSize int
}

// New 默认第 1 页、不分页、无排序（由存储层使用默认排序）
func New() *Query {
	return &Query{pageNum: 1, pageSize: Unbounded}
}

func (q *Query) Filter(field Field, op Operator, value any) *Query {
	q.filters = append(q.filters, Filter{Field: field, Op: op, Value: value})
	return q
}

func (q *Query) Sort(field Field, dir Direction) *Query {
	q.sorts = append(q.sorts, Sort{Field: field, Direction: dir})
	return q
}

// Page 设置分页，pageNum 从 1 开始
func (q *Query) Page(pageNum, pageSize int) *Query {
	if pageNum < 1 {
		pageNum = 1
	}
	q.pageNum = pageNum
	q.pageSize = pageSize
	return q
}

func (q *Query) Filters() []Filter { return q.filters }
func (q *Query) Sorts() []Sort     { return q.sorts }
func (q *Query) PageNum() int      { return q.pageNum }
func (q *Query) PageSize() int     { return q.pageSize }

// Unbounded pageSize 非正数或者 >= math.MaxInt32 时视为不分页
func (q *Query) Unbounded() bool {
	return q.pageSize <= 0 || q.pageSize >= math.MaxInt32
}

func (q *Query) Offset() int {
	if q.Unbounded() {
		return 0
	}
	return (q.pageNum - 1) * q.pageSize
}

// Limit 不分页时返回 -1
func (q *Query) Limit() int {
	if q.Unbounded() {
		return -1
	}
	return q.pageSize
}

// Empty 不分页时只有第一页有数据
func (q *Query) Empty() bool {
	return q.Unbounded() && q.pageNum > 1
}

func (q *Query) Validate() error {
	// 偏移量必须能用 int 表示
	if !q.Unbounded() && q.pageNum-1 > math.MaxInt/q.pageSize {
		return fmt.Errorf("page number %d too large for page size %d", q.pageNum, q.pageSize)
	}
	for _, f := range q.filters {
		if !f.Field.Valid() {
			return fmt.Errorf("unknown filter field: %q", f.Field)
		}
		if !f.Op.Valid() {
			return fmt.Errorf("unknown filter operator: %q", f.Op)
		}
		if f.Op == Like {
			if _, ok := f.Value.(string); !ok {
				return fmt.Errorf("LIKE on %q needs a string pattern", f.Field)
			}
		}
	}
	for _, s := range q.sorts {
		if !s.Field.Valid() {
			return fmt.Errorf("unknown sort field: %q", s.Field)
		}
	}
	return nil
}

// Pagination 分页信息
type Pagination struct {
	PageCount   int   `json:"paginationPageCount"`
	RecordCount int64 `json:"paginationRecordCount"`
}

func NewPagination(total int64, q *Query) Pagination {
	p := Pagination{RecordCount: total}
	switch {
	case total == 0:
		p.PageCount = 0
	case q.Unbounded():
		p.PageCount = 1
	default:
		p.PageCount = int((total + int64(q.pageSize) - 1) / int64(q.pageSize))
	}
	return p
}
