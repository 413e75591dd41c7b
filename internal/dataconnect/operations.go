package dataconnect

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// OperationKind distinguishes queries from mutations.
type OperationKind int

const (
	// Query operations are read-only.
	Query OperationKind = iota
	// Mutation operations change data.
	Mutation
)

func (k OperationKind) String() string {
	if k == Mutation {
		return "mutation"
	}
	return "query"
}

func (k OperationKind) method() string {
	if k == Mutation {
		return "executeMutation"
	}
	return "executeQuery"
}

// Ref is a reference to one named operation with its bound variables. Data
// is the shape of the operation's result.
type Ref[Data any] struct {
	OperationName string
	Kind          OperationKind
	Variables     any
}

// Execute runs ref on c and returns the decoded data. On an *OperationError
// the partially decoded data is returned as well.
func Execute[Data any](ctx context.Context, c *Client, ref Ref[Data]) (*Data, error) {
	var data Data
	if err := c.execute(ctx, ref.Kind, ref.OperationName, ref.Variables, &data); err != nil {
		var opErr *OperationError
		if errors.As(err, &opErr) {
			return &data, err
		}
		return nil, err
	}
	return &data, nil
}

// Operation names.
const (
	CreatePublicListOperation  = "CreatePublicList"
	ListPublicListsOperation   = "ListPublicLists"
	AddMovieToListOperation    = "AddMovieToList"
	GetMyWatchHistoryOperation = "GetMyWatchHistory"
)

// ListKey identifies a list row.
type ListKey struct {
	ID uuid.UUID `json:"id"`
}

// CreatePublicListVariables are the inputs of CreatePublicList.
type CreatePublicListVariables struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreatePublicListData is the result of CreatePublicList.
type CreatePublicListData struct {
	ListInsert ListKey `json:"list_insert"`
}

// CreatePublicListRef builds a CreatePublicList mutation.
func CreatePublicListRef(vars CreatePublicListVariables) Ref[CreatePublicListData] {
	return Ref[CreatePublicListData]{OperationName: CreatePublicListOperation, Kind: Mutation, Variables: vars}
}

// CreatePublicList creates a public list and returns its key.
func (c *Client) CreatePublicList(ctx context.Context, vars CreatePublicListVariables) (*CreatePublicListData, error) {
	if vars.Name == "" {
		return nil, fmt.Errorf("dataconnect: %s: name is required", CreatePublicListOperation)
	}
	return Execute(ctx, c, CreatePublicListRef(vars))
}

// PublicList is one row of ListPublicLists.
type PublicList struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

// ListPublicListsData is the result of ListPublicLists.
type ListPublicListsData struct {
	Lists []PublicList `json:"lists"`
}

// ListPublicListsRef builds a ListPublicLists query.
func ListPublicListsRef() Ref[ListPublicListsData] {
	return Ref[ListPublicListsData]{OperationName: ListPublicListsOperation, Kind: Query}
}

// ListPublicLists returns every public list.
func (c *Client) ListPublicLists(ctx context.Context) (*ListPublicListsData, error) {
	return Execute(ctx, c, ListPublicListsRef())
}

// AddMovieToListVariables are the inputs of AddMovieToList.
type AddMovieToListVariables struct {
	ListID   uuid.UUID `json:"listId"`
	MovieID  uuid.UUID `json:"movieId"`
	Position int       `json:"position"`
	Note     *string   `json:"note,omitempty"`
}

// ListItemKey identifies a list item row.
type ListItemKey struct {
	ListID  uuid.UUID `json:"listId"`
	MovieID uuid.UUID `json:"movieId"`
}

// AddMovieToListData is the result of AddMovieToList.
type AddMovieToListData struct {
	ListItemInsert ListItemKey `json:"listItem_insert"`
}

// AddMovieToListRef builds an AddMovieToList mutation.
func AddMovieToListRef(vars AddMovieToListVariables) Ref[AddMovieToListData] {
	return Ref[AddMovieToListData]{OperationName: AddMovieToListOperation, Kind: Mutation, Variables: vars}
}

// AddMovieToList places a movie on a list at the given position.
func (c *Client) AddMovieToList(ctx context.Context, vars AddMovieToListVariables) (*AddMovieToListData, error) {
	if vars.ListID == uuid.Nil || vars.MovieID == uuid.Nil {
		return nil, fmt.Errorf("dataconnect: %s: listId and movieId are required", AddMovieToListOperation)
	}
	return Execute(ctx, c, AddMovieToListRef(vars))
}

// WatchedMovie is the movie embedded in a watch record.
type WatchedMovie struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Year  int       `json:"year"`
}

// Watch is one entry of the caller's watch history.
type Watch struct {
	ID        uuid.UUID    `json:"id"`
	Movie     WatchedMovie `json:"movie"`
	WatchDate string       `json:"watchDate"`
	Location  *string      `json:"location,omitempty"`
}

// GetMyWatchHistoryData is the result of GetMyWatchHistory.
type GetMyWatchHistoryData struct {
	Watches []Watch `json:"watches"`
}

// GetMyWatchHistoryRef builds a GetMyWatchHistory query.
func GetMyWatchHistoryRef() Ref[GetMyWatchHistoryData] {
	return Ref[GetMyWatchHistoryData]{OperationName: GetMyWatchHistoryOperation, Kind: Query}
}

// GetMyWatchHistory returns the authenticated user's watch history.
func (c *Client) GetMyWatchHistory(ctx context.Context) (*GetMyWatchHistoryData, error) {
	return Execute(ctx, c, GetMyWatchHistoryRef())
}
