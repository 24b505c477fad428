package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/lawrag/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

// --- hash.go tests ---

func TestHSetMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f1": "v1"}},
		{Key: "k2", Fields: map[string]string{"f2": "v2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
		{Key: "k2", Fields: map[string]string{"f": "v"}},
	})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil)
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_ChunksLargeBatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	items := make([]db.HashSetItem, maxPipeline+10)
	for i := range items {
		items[i] = db.HashSetItem{Key: fmt.Sprintf("k%d", i), Fields: map[string]string{"f": "v"}}
	}

	var sizes []int
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			sizes = append(sizes, len(cmds))
			out := make([]rueidis.RedisResult, len(cmds))
			for i := range out {
				out[i] = mock.Result(mock.RedisInt64(1))
			}
			return out
		}).
		Times(2)

	s := NewStoreForTest(c)
	if err := s.HSetMulti(context.Background(), items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sizes) != 2 || sizes[0] != maxPipeline || sizes[1] != 10 {
		t.Errorf("unexpected pipeline sizes %v", sizes)
	}
}

func TestHSetMulti_ErrorNamesKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.ErrorResult(errors.New("OOM")),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "lawrag:ru:article:a", Fields: map[string]string{"f": "v"}},
		{Key: "lawrag:ru:article:b", Fields: map[string]string{"f": "v"}},
	})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
	if dbErr.Op != db.OpHSet || dbErr.Key != "lawrag:ru:article:b" {
		t.Errorf("unexpected error context %+v", dbErr)
	}
	if err.Error() != "HSET lawrag:ru:article:b: OOM" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

// --- kv.go tests ---

func TestMGet_MixedHitsAndMisses(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("GET", "a"), mock.Match("GET", "b"), mock.Match("GET", "c")).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisBlobString("va")),
			mock.Result(mock.RedisNil()),
			mock.Result(mock.RedisBlobString("vc")),
		})

	s := NewStoreForTest(c)
	values, err := s.MGet(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 3 || string(values[0]) != "va" || values[1] != nil || string(values[2]) != "vc" {
		t.Errorf("unexpected values %q", values)
	}
}

func TestMGet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.ErrorResult(context.DeadlineExceeded)})

	s := NewStoreForTest(c)
	_, err := s.MGet(context.Background(), []string{"a"})
	if !errors.Is(err, context.DeadlineExceeded) || !isDBError(err) {
		t.Errorf("expected wrapped db.Error, got %v", err)
	}
}

func TestMGet_Empty(t *testing.T) {
	s := NewStoreForTest(nil)
	values, err := s.MGet(context.Background(), nil)
	if err != nil || values != nil {
		t.Errorf("expected nil, nil; got %v, %v", values, err)
	}
}

func TestSetMulti_WithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("SET", "k1", "v1", "EX", "60"),
			mock.Match("SET", "k2", "v2", "EX", "60"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisString("OK")),
		})

	s := NewStoreForTest(c)
	err := s.SetMulti(context.Background(), []db.KVItem{
		{Key: "k1", Value: []byte("v1")},
		{Key: "k2", Value: []byte("v2")},
	}, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetMulti_NoExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("SET", "k", "v")).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisString("OK"))})

	s := NewStoreForTest(c)
	if err := s.SetMulti(context.Background(), []db.KVItem{{Key: "k", Value: []byte("v")}}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- counter.go tests ---

func TestCounterGet_MissingUsesInitial(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "balance:1")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	v, err := s.CounterGet(context.Background(), "balance:1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 10 {
		t.Errorf("expected initial 10, got %d", v)
	}
}

func TestCounterGet_Stored(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "balance:1")).
		Return(mock.Result(mock.RedisBlobString("4")))

	s := NewStoreForTest(c)
	v, err := s.CounterGet(context.Background(), "balance:1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 4 {
		t.Errorf("expected 4, got %d", v)
	}
}

func TestCounterGet_Garbage(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "balance:1")).
		Return(mock.Result(mock.RedisBlobString("four")))

	s := NewStoreForTest(c)
	if _, err := s.CounterGet(context.Background(), "balance:1", 10); !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func evalFor(key string) func(cmd []string) bool {
	return func(cmd []string) bool {
		return (cmd[0] == "EVALSHA" || cmd[0] == "EVAL") && len(cmd) > 3 && cmd[3] == key
	}
}

func TestCounterTake_Taken(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(evalFor("balance:1"))).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(1), mock.RedisInt64(7))))

	s := NewStoreForTest(c)
	left, ok, err := s.CounterTake(context.Background(), "balance:1", 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || left != 7 {
		t.Errorf("expected ok with 7 left, got ok=%v left=%d", ok, left)
	}
}

func TestCounterTake_Insufficient(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(evalFor("balance:1"))).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0), mock.RedisInt64(1))))

	s := NewStoreForTest(c)
	left, ok, err := s.CounterTake(context.Background(), "balance:1", 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || left != 1 {
		t.Errorf("expected refusal with 1 left, got ok=%v left=%d", ok, left)
	}
}

func TestCounterTake_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(evalFor("balance:1"))).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if _, _, err := s.CounterTake(context.Background(), "balance:1", 3, 10); !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func TestCounterAdd(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(evalFor("balance:1"))).
		Return(mock.Result(mock.RedisInt64(12)))

	s := NewStoreForTest(c)
	v, err := s.CounterAdd(context.Background(), "balance:1", 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 12 {
		t.Errorf("expected 12, got %d", v)
	}
}

// --- index.go tests ---

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && cmd[1] == "lawrag:ru:idx" && cmd[3] == "HASH"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	idx := &db.IndexDefinition{
		Name:     "lawrag:ru:idx",
		Prefixes: []string{"lawrag:ru:article:"},
		Fields:   []db.IndexField{{Name: "language", Type: db.IndexFieldTag}},
	}
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	idx := &db.IndexDefinition{
		Name:   "test:idx",
		Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}},
	}
	err := s.CreateIndex(context.Background(), idx)
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_WithDocuments(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx", "DD")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "test:idx", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	err := s.DropIndex(context.Background(), "test:idx", false)
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "a")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("a")))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "b")).
			Return(mock.Result(mock.RedisError("Unknown Index name"))),
	)

	s := NewStoreForTest(c)
	if ok, err := s.IndexExists(context.Background(), "a"); err != nil || !ok {
		t.Errorf("IndexExists(a) = %v, %v; want true", ok, err)
	}
	if ok, err := s.IndexExists(context.Background(), "b"); err != nil || ok {
		t.Errorf("IndexExists(b) = %v, %v; want false", ok, err)
	}
}

func TestBuildFieldArgs_AllTypes(t *testing.T) {
	tests := []struct {
		name  string
		field db.IndexField
		want  string
	}{
		{"tag", db.IndexField{Name: "f", Type: db.IndexFieldTag}, "TAG"},
		{"text", db.IndexField{Name: "f", Type: db.IndexFieldText}, "TEXT"},
		{"tag_with_separator", db.IndexField{Name: "f", Type: db.IndexFieldTag, TagSeparator: "|"}, "SEPARATOR"},
		{"vector_flat", db.IndexField{
			Name: "f", Type: db.IndexFieldVector,
			Vector: db.VectorSpec{Dim: 128, Algorithm: db.VectorFlat},
		}, "FLAT"},
		{"vector_default_algo", db.IndexField{
			Name: "f", Type: db.IndexFieldVector, Vector: db.VectorSpec{Dim: 768},
		}, "HNSW"},
		{"vector_default_metric", db.IndexField{
			Name: "f", Type: db.IndexFieldVector, Vector: db.VectorSpec{Dim: 768},
		}, "COSINE"},
		{"vector_hnsw_params", db.IndexField{
			Name: "f", Type: db.IndexFieldVector,
			Vector: db.VectorSpec{Dim: 256, Algorithm: db.VectorHNSW, M: 16, EFConstruct: 200},
		}, "EF_CONSTRUCTION"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args, err := buildFieldArgs(&tc.field)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertContains(t, args, tc.want)
		})
	}
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	if _, err := buildFieldArgs(&db.IndexField{Name: "", Type: db.IndexFieldTag}); err == nil {
		t.Error("expected error for empty field name")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldType(99)}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldVector}); err == nil {
		t.Error("expected error for zero vector dim")
	}
}

func assertContains(t *testing.T, args []string, want string) {
	t.Helper()
	for _, a := range args {
		if a == want {
			return
		}
	}
	t.Errorf("expected %q in args %v", want, args)
}

// --- search.go tests ---

func knnReply(pairs ...rueidis.RedisMessage) rueidis.RedisResult {
	return mock.Result(mock.RedisArray(pairs...))
}

func doc(key, distance, title string) []rueidis.RedisMessage {
	return []rueidis.RedisMessage{
		mock.RedisString(key),
		mock.RedisArray(
			mock.RedisString("__vector_score"),
			mock.RedisString(distance),
			mock.RedisString("article_title"),
			mock.RedisString(title),
		),
	}
}

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	reply := []rueidis.RedisMessage{mock.RedisInt64(1)}
	reply = append(reply, doc("lawrag:ru:article:1", "0.1", "Статья 1")...)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "idx"
		})).
		Return(knnReply(reply...))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1, 0.2},
		K:         3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v", result)
	}
	e := result.Entries[0]
	if e.Key != "lawrag:ru:article:1" || e.Fields["article_title"] != "Статья 1" {
		t.Errorf("unexpected entry %+v", e)
	}
	// cosine distance 0.1 maps to similarity 0.9
	if e.Score < 0.89 || e.Score > 0.91 {
		t.Errorf("expected score ~0.9, got %f", e.Score)
	}
	if _, ok := e.Fields["__vector_score"]; ok {
		t.Error("score field must be stripped from fields")
	}
}

func TestSearchKNN_NegativeSimilarityAndOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	reply := []rueidis.RedisMessage{mock.RedisInt64(3)}
	reply = append(reply, doc("far", "1.5", "far")...)
	reply = append(reply, doc("near", "0.2", "near")...)
	reply = append(reply, doc("mid", "0.7", "mid")...)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(knnReply(reply...))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"near", "mid", "far"}
	for i, k := range want {
		if result.Entries[i].Key != k {
			t.Fatalf("entry %d = %s, want %s", i, result.Entries[i].Key, k)
		}
	}
	if got := result.Entries[2].Score; got > -0.49 || got < -0.51 {
		t.Errorf("expected similarity -0.5 (unclamped), got %f", got)
	}
}

func TestSearchKNN_Args(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[2] != "*=>[KNN 5 @vector $BLOB EF_RUNTIME $EF AS __vector_score]" {
				return false
			}
			hasReturn, hasEF := false, false
			for i, a := range cmd {
				if a == "RETURN" && cmd[i+1] == "2" && cmd[i+2] == "article_title" && cmd[i+3] == "__vector_score" {
					hasReturn = true
				}
				if a == "EF" && cmd[i+1] == "64" {
					hasEF = true
				}
			}
			return hasReturn && hasEF
		})).
		Return(knnReply(mock.RedisInt64(0)))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "idx",
		Vector:       []float32{0.1},
		K:            5,
		ReturnFields: []string{"article_title"},
		EFRuntime:    64,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchKNN_MissingIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("idx: no such index")))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 1})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchKNN_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 10})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 10}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 0}); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestSearchCount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "idx", "*", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(42))))

	s := NewStoreForTest(c)
	n, err := s.SearchCount(context.Background(), "idx", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("expected 42, got %d", n)
	}
}

func TestVectorToBytes(t *testing.T) {
	b := vectorToBytes([]float32{1.0, 2.0})
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	// 1.0f little-endian
	if b[0] != 0x00 || b[3] != 0x3f {
		t.Errorf("unexpected encoding % x", b[:4])
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
