package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/mocks"
	"github.com/Aman-CERP/docindex/internal/store"
)

func parsedDocs(n int) []ParsedDocument {
	docs := make([]ParsedDocument, n)
	for i := range docs {
		docs[i] = ParsedDocument{
			Task:    Task{Path: fmt.Sprintf("/d/doc%d.md", i), ContentHash: fmt.Sprintf("h%d", i), Size: 42},
			Content: "body",
			Success: true,
		}
	}
	return docs
}

func TestWriter_BatchesRecords(t *testing.T) {
	// Given: five documents and a batch size of two
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	var sizes []int
	st.EXPECT().BatchUpsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, recs []*store.FileRecord) (int, error) {
			sizes = append(sizes, len(recs))
			for _, rec := range recs {
				assert.Equal(t, "md", rec.FileType)
				assert.Equal(t, store.StatusActive, rec.Status)
				assert.NotEmpty(t, rec.ContentHash)
			}
			return len(recs), nil
		}).Times(3)

	// When: writing
	res, err := NewWriter(st, 2, nil).Write(context.Background(), parsedDocs(5), nil)

	// Then: three transactions of 2, 2 and 1 records
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Len(t, res.Written, 5)
	assert.Empty(t, res.Failures)
}

func TestWriter_SkipsFailedDocuments(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	docs := parsedDocs(3)
	docs[1].Success = false
	docs[1].Err = errors.New("parse failed")

	st.EXPECT().BatchUpsert(gomock.Any(), gomock.Len(2)).Return(2, nil)

	res, err := NewWriter(st, 10, nil).Write(context.Background(), docs, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"/d/doc0.md", "/d/doc2.md"}, res.Written)
}

func TestWriter_FallsBackToSingleRecords(t *testing.T) {
	// Given: a batch that fails because of one bad record
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().BatchUpsert(gomock.Any(), gomock.Any()).
		Return(0, docerrors.New(docerrors.ErrCodeBatchWriteFailed, "failed to apply batch", errors.New("constraint")))
	st.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *store.FileRecord) error {
			if rec.Path == "/d/doc1.md" {
				return errors.New("constraint")
			}
			return nil
		}).Times(3)

	// When: writing
	res, err := NewWriter(st, 10, nil).Write(context.Background(), parsedDocs(3), nil)

	// Then: only the bad record is lost, as a write failure
	require.NoError(t, err)
	assert.Equal(t, []string{"/d/doc0.md", "/d/doc2.md"}, res.Written)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "/d/doc1.md", res.Failures[0].Path)
	assert.Equal(t, docerrors.ErrCodeWriteFailed, docerrors.GetCode(res.Failures[0].Err))
}

func TestWriter_SoftDeletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	gomock.InOrder(
		st.EXPECT().SoftDelete(gomock.Any(), "/d/gone1.txt").Return(nil),
		st.EXPECT().SoftDelete(gomock.Any(), "/d/gone2.txt").Return(nil),
	)

	res, err := NewWriter(st, 10, nil).Write(context.Background(), nil, []string{"/d/gone1.txt", "/d/gone2.txt"})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	assert.Empty(t, res.Written)
}

func TestWriter_InfrastructureErrorStopsPass(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "closed store", err: store.ErrClosed},
		{name: "store unavailable", err: docerrors.StoreError("disk gone", errors.New("io"))},
		{name: "cancelled", err: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			st := mocks.NewMockStore(ctrl)

			// No Upsert fallback and no soft deletes are expected.
			st.EXPECT().BatchUpsert(gomock.Any(), gomock.Any()).Return(0, tt.err)

			res, err := NewWriter(st, 2, nil).Write(context.Background(), parsedDocs(4), []string{"/d/x"})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, res.Written)
		})
	}
}

func TestWriter_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWriter(st, 2, nil).Write(ctx, parsedDocs(2), nil)

	assert.ErrorIs(t, err, context.Canceled)
}
