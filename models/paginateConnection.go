package models

import (
	"fmt"

	"github.com/mmdatafocus/shop_backend/utils"
	"gorm.io/gorm"
)

type Cursor interface {
	GetCursor() string
}

type Identifier interface {
	GetId() int
}

type CompositeCursor interface {
	Cursor
	Identifier
}

type Edge[N Cursor] struct {
	Node   *N     `json:"node"`
	Cursor string `json:"cursor"`
}

type Connection[N Cursor] struct {
	Edges    []Edge[N] `json:"edges"`
	PageInfo *PageInfo `json:"pageInfo"`
}

// fetch one page ordered by (cursorColumn, id); cmpOperator ">" pages ascending, "<" descending
func FetchPageCompositeCursor[T CompositeCursor](dbCtx *gorm.DB,
	limit int,
	after *string,
	cursorColumn string,
	cmpOperator string,
) (*Connection[T], error) {

	nodes := make([]*T, 0)

	// order
	if cmpOperator == ">" {
		dbCtx = dbCtx.Order(cursorColumn + ", id")
	} else if cmpOperator == "<" {
		dbCtx = dbCtx.Order(cursorColumn + " DESC, id DESC")
	}

	// filter
	decodedCursor, cursorId := DecodeCompositeCursor(after)
	if decodedCursor != "" {
		dbCtx = dbCtx.Where(
			// [1] = column, [2] = operator
			fmt.Sprintf("%[1]s %[2]s ? OR (%[1]s = ? AND id %[2]s ?)", cursorColumn, cmpOperator),
			decodedCursor, decodedCursor, cursorId)
	}

	if err := dbCtx.Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, err
	}

	hasNextPage := len(nodes) > limit
	if hasNextPage {
		nodes = nodes[:limit]
	}
	edges := make([]Edge[T], 0, len(nodes))
	for _, node := range nodes {
		edges = append(edges, Edge[T]{
			Node:   node,
			Cursor: EncodeCompositeCursor((*node).GetCursor(), (*node).GetId()),
		})
	}

	pageInfo := PageInfo{
		HasNextPage: utils.NewFalse(),
	}
	if len(edges) > 0 {
		pageInfo = PageInfo{
			StartCursor: edges[0].Cursor,
			EndCursor:   edges[len(edges)-1].Cursor,
			HasNextPage: &hasNextPage,
		}
	}

	return &Connection[T]{Edges: edges, PageInfo: &pageInfo}, nil
}
