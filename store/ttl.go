package store

import (
	"maps"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Soft deletes set the ttl attribute to the deletion time. An item whose ttl
// has passed is gone for every read even before DynamoDB expires it.

// IsDeleted reports whether an item carries a ttl that has passed.
func IsDeleted(item map[string]types.AttributeValue) bool {
	n, ok := item[attrTTL].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// TTLFilterExpr is the filter that hides soft-deleted items. It expects the
// names from ttlFilterNames and the values from ttlFilterValues.
func TTLFilterExpr() string {
	return "(attribute_not_exists(#ttl) OR #ttl > :now)"
}

func ttlFilterNames() map[string]string {
	return map[string]string{"#ttl": attrTTL}
}

func ttlFilterValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{":now": unixNow()}
}

// unixNow is the current time as a DynamoDB number, the ttl format.
func unixNow() *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)}
}

func mergeExprNames(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, s := range sets {
		maps.Copy(out, s)
	}
	return out
}

func mergeExprValues(sets ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue)
	for _, s := range sets {
		maps.Copy(out, s)
	}
	return out
}
