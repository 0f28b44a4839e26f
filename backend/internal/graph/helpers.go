package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Helper Functions
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

func getInt64SliceFromRecord(record *neo4j.Record, key string) []int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []int64{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]int64, 0, len(slice))
		for _, v := range slice {
			if i, ok := v.(int64); ok {
				result = append(result, i)
			}
		}
		return result
	}
	return []int64{}
}
