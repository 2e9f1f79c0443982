package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// OpKind discriminates the update operations supported by Update.
type OpKind int

const (
	OpSet OpKind = iota
	OpSetIfAbsent
	OpAppend
	OpAdd
)

// UpdateOp is one field operation within an atomic conditional update.
// Paths may be dotted to address nested map attributes
// ("quality_metrics.total_errors").
type UpdateOp struct {
	Kind  OpKind
	Path  string
	Value types.AttributeValue
}

// Set overwrites the attribute at path (last-writer-wins).
func Set(path string, value types.AttributeValue) UpdateOp {
	return UpdateOp{Kind: OpSet, Path: path, Value: value}
}

// SetIfAbsent writes the attribute only when it does not exist yet, leaving
// any present value untouched.
func SetIfAbsent(path string, value types.AttributeValue) UpdateOp {
	return UpdateOp{Kind: OpSetIfAbsent, Path: path, Value: value}
}

// Append appends the given elements to the list at path, creating the list
// when absent. Concurrent appends are additive; none are lost.
func Append(path string, elems ...types.AttributeValue) UpdateOp {
	return UpdateOp{Kind: OpAppend, Path: path, Value: &types.AttributeValueMemberL{Value: elems}}
}

// Add increments the numeric attribute at path by delta, treating a missing
// attribute as zero.
func Add(path string, delta int) UpdateOp {
	return UpdateOp{Kind: OpAdd, Path: path, Value: &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", delta)}}
}

// buildUpdateExpression composes the ops into one UpdateExpression with
// attribute name/value placeholder maps.
func buildUpdateExpression(ops []UpdateOp) (string, map[string]string, Item, error) {
	var setClauses, addClauses []string
	names := make(map[string]string)
	values := make(Item)

	for i, op := range ops {
		if strings.TrimSpace(op.Path) == "" {
			return "", nil, nil, errors.New("update op has empty path")
		}
		path := placeholderPath(op.Path, i, names)
		valRef := fmt.Sprintf(":v%d", i)

		switch op.Kind {
		case OpSet:
			setClauses = append(setClauses, fmt.Sprintf("%s = %s", path, valRef))
			values[valRef] = op.Value
		case OpSetIfAbsent:
			setClauses = append(setClauses, fmt.Sprintf("%s = if_not_exists(%s, %s)", path, path, valRef))
			values[valRef] = op.Value
		case OpAppend:
			emptyRef := fmt.Sprintf(":e%d", i)
			setClauses = append(setClauses, fmt.Sprintf("%s = list_append(if_not_exists(%s, %s), %s)", path, path, emptyRef, valRef))
			values[valRef] = op.Value
			values[emptyRef] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
		case OpAdd:
			addClauses = append(addClauses, fmt.Sprintf("%s %s", path, valRef))
			values[valRef] = op.Value
		default:
			return "", nil, nil, fmt.Errorf("unknown update op kind %d", op.Kind)
		}
	}

	var parts []string
	if len(setClauses) > 0 {
		parts = append(parts, "SET "+strings.Join(setClauses, ", "))
	}
	if len(addClauses) > 0 {
		parts = append(parts, "ADD "+strings.Join(addClauses, ", "))
	}
	return strings.Join(parts, " "), names, values, nil
}

// placeholderPath rewrites each dotted segment of path into an expression
// attribute name placeholder, registering the mapping in names.
func placeholderPath(path string, opIndex int, names map[string]string) string {
	segments := strings.Split(path, ".")
	refs := make([]string, len(segments))
	for j, segment := range segments {
		ref := fmt.Sprintf("#n%d_%d", opIndex, j)
		names[ref] = segment
		refs[j] = ref
	}
	return strings.Join(refs, ".")
}
