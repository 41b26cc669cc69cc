package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Field names of a docbot collection in Milvus.
const (
	milvusFieldID       = "id"
	milvusFieldDocID    = "doc_id"
	milvusFieldText     = "text"
	milvusFieldMetadata = "metadata"
	milvusFieldVector   = "vector"
)

var milvusOutputFields = []string{milvusFieldDocID, milvusFieldText, milvusFieldMetadata}

type MilvusDB struct {
	client client.Client
	config *Config
}

func newMilvusDB(cfg *Config) (*MilvusDB, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("milvus requires an address")
	}
	return &MilvusDB{config: cfg}, nil
}

func (m *MilvusDB) Connect(ctx context.Context) error {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}
	c, err := client.NewClient(ctx, client.Config{
		Address: m.config.Address,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to milvus at %s: %w", m.config.Address, err)
	}
	m.client = c
	return nil
}

func (m *MilvusDB) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *MilvusDB) connected() error {
	if m.client == nil {
		return fmt.Errorf("milvus client is not connected")
	}
	return nil
}

func (m *MilvusDB) HasCollection(ctx context.Context, name string) (bool, error) {
	if err := m.connected(); err != nil {
		return false, err
	}
	return m.client.HasCollection(ctx, name)
}

func (m *MilvusDB) DropCollection(ctx context.Context, name string) error {
	if err := m.connected(); err != nil {
		return err
	}
	return m.client.DropCollection(ctx, name)
}

// CreateCollection creates the fixed docbot layout: a varchar primary key,
// the owning document id, the chunk text, JSON metadata and the vector.
func (m *MilvusDB) CreateCollection(ctx context.Context, name string, schema Schema) error {
	if err := m.connected(); err != nil {
		return err
	}
	dim := schema.Dimension
	if dim <= 0 {
		dim = m.config.Dimension
	}
	if dim <= 0 {
		return fmt.Errorf("collection %s needs a vector dimension", name)
	}

	milvusSchema := entity.NewSchema().WithName(name).WithDescription(schema.Description).
		WithField(entity.NewField().WithName(milvusFieldID).WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).WithMaxLength(64)).
		WithField(entity.NewField().WithName(milvusFieldDocID).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64)).
		WithField(entity.NewField().WithName(milvusFieldText).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().WithName(milvusFieldMetadata).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().WithName(milvusFieldVector).WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim)))

	if err := m.client.CreateCollection(ctx, milvusSchema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (m *MilvusDB) Insert(ctx context.Context, collectionName string, data []Record) error {
	if err := m.connected(); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	ids := make([]string, len(data))
	docIDs := make([]string, len(data))
	texts := make([]string, len(data))
	metas := make([]string, len(data))
	vectors := make([][]float32, len(data))
	dim := len(data[0].Vector)
	for i, record := range data {
		if len(record.Vector) != dim {
			return fmt.Errorf("record %s has dimension %d, expected %d", record.ID, len(record.Vector), dim)
		}
		meta, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of %s: %w", record.ID, err)
		}
		ids[i] = record.ID
		docIDs[i] = record.DocID
		texts[i] = record.Text
		metas[i] = string(meta)
		vectors[i] = toFloat32Slice(record.Vector)
	}

	_, err := m.client.Insert(ctx, collectionName, "",
		entity.NewColumnVarChar(milvusFieldID, ids),
		entity.NewColumnVarChar(milvusFieldDocID, docIDs),
		entity.NewColumnVarChar(milvusFieldText, texts),
		entity.NewColumnVarChar(milvusFieldMetadata, metas),
		entity.NewColumnFloatVector(milvusFieldVector, dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %d records into %s: %w", len(data), collectionName, err)
	}
	GlobalLogger.Debug("Inserted records into milvus", "collection", collectionName, "count", len(data))
	return nil
}

func (m *MilvusDB) Delete(ctx context.Context, collectionName string, filter Filter) error {
	if err := m.connected(); err != nil {
		return err
	}
	if len(filter.DocIDs) == 0 {
		return nil
	}
	if err := m.client.Delete(ctx, collectionName, "", docIDExpr(filter.DocIDs)); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", collectionName, err)
	}
	return nil
}

func (m *MilvusDB) Flush(ctx context.Context, collectionName string) error {
	if err := m.connected(); err != nil {
		return err
	}
	return m.client.Flush(ctx, collectionName, false)
}

func (m *MilvusDB) CreateIndex(ctx context.Context, collectionName, field string, index Index) error {
	if err := m.connected(); err != nil {
		return err
	}
	var idx entity.Index
	var err error

	metric := convertMetricType(index.Metric)
	switch index.Type {
	case "HNSW":
		idx, err = entity.NewIndexHNSW(metric,
			intParam(index.Parameters, "M", 16), intParam(index.Parameters, "efConstruction", 200))
	case "FLAT":
		idx, err = entity.NewIndexFlat(metric)
	case "AUTOINDEX", "":
		idx, err = entity.NewIndexAUTOINDEX(metric)
	default:
		return fmt.Errorf("unsupported index type: %s", index.Type)
	}
	if err != nil {
		return err
	}

	return m.client.CreateIndex(ctx, collectionName, field, idx, false)
}

func (m *MilvusDB) LoadCollection(ctx context.Context, name string) error {
	if err := m.connected(); err != nil {
		return err
	}
	return m.client.LoadCollection(ctx, name, false)
}

func (m *MilvusDB) Search(ctx context.Context, collectionName string, vector Vector, topK int, opts SearchOptions) ([]SearchResult, error) {
	if err := m.connected(); err != nil {
		return nil, err
	}
	var expr string
	if opts.Filter != nil {
		if len(opts.Filter.DocIDs) == 0 {
			return nil, nil
		}
		expr = docIDExpr(opts.Filter.DocIDs)
	}

	sp, err := createSearchParam(opts.Params)
	if err != nil {
		return nil, err
	}

	result, err := m.client.Search(ctx, collectionName, nil, expr, milvusOutputFields,
		[]entity.Vector{entity.FloatVector(toFloat32Slice(vector))},
		milvusFieldVector, convertMetricType(opts.MetricType), topK, sp)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collectionName, err)
	}

	return wrapSearchResults(result, opts.MetricType), nil
}

func createSearchParam(params map[string]interface{}) (entity.SearchParam, error) {
	switch params["type"] {
	case "HNSW":
		return entity.NewIndexHNSWSearchParam(intParam(params, "ef", 64))
	case "FLAT":
		return entity.NewIndexFlatSearchParam()
	default:
		return entity.NewIndexAUTOINDEXSearchParam(intParam(params, "level", 1))
	}
}

func convertMetricType(metricType string) entity.MetricType {
	switch strings.ToUpper(metricType) {
	case "L2":
		return entity.L2
	case "IP":
		return entity.IP
	default:
		return entity.COSINE
	}
}

func intParam(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// docIDExpr builds a boolean expression matching any of ids.
func docIDExpr(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("%s in [%s]", milvusFieldDocID, strings.Join(quoted, ", "))
}

func wrapSearchResults(result []client.SearchResult, metricType string) []SearchResult {
	var searchResults []SearchResult
	for _, rs := range result {
		docIDs := rs.Fields.GetColumn(milvusFieldDocID)
		texts := rs.Fields.GetColumn(milvusFieldText)
		metas := rs.Fields.GetColumn(milvusFieldMetadata)

		for i := 0; i < rs.ResultCount; i++ {
			id, _ := rs.IDs.GetAsString(i)
			r := SearchResult{ID: id, Score: float64(rs.Scores[i])}
			if strings.EqualFold(metricType, "L2") {
				r.Score = 1 / (1 + r.Score)
			}
			if docIDs != nil {
				r.DocID, _ = docIDs.GetAsString(i)
			}
			if texts != nil {
				r.Text, _ = texts.GetAsString(i)
			}
			if metas != nil {
				if raw, err := metas.GetAsString(i); err == nil && raw != "" {
					if err := json.Unmarshal([]byte(raw), &r.Metadata); err != nil {
						GlobalLogger.Warn("Discarding unreadable metadata", "id", id, "error", err)
					}
				}
			}
			searchResults = append(searchResults, r)
		}
	}
	return searchResults
}
