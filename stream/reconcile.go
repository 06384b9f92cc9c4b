// Package stream provides a DynamoDB Streams handler that keeps parent
// foreign arrays consistent with the child records that reference them.
//
// Attach the handler to the stream of a child table (NEW_AND_OLD_IMAGES).
// Every INSERT, REMOVE or MODIFY that touches the foreign key triggers a
// Reconcile of the affected parents, so children written outside the runtime
// or left behind by a failed two-phase create show up in the parent's array.
// The record's child is passed along, so a children query served by a lagging
// index cannot hide it.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jacentio/resourceful/engine/dynamo"
	"github.com/jacentio/resourceful/relationship"
	"github.com/jacentio/resourceful/resource"
)

// Reconciler is the part of *relationship.Relationship the handler needs.
type Reconciler interface {
	Spec() relationship.Spec
	Reconcile(ctx context.Context, parentID string, childIDs ...string) (*resource.Instance, error)
}

var _ Reconciler = (*relationship.Relationship)(nil)

// Handler processes DynamoDB stream events for child tables.
type Handler struct {
	routes map[string][]Reconciler
	all    []Reconciler
	logger *zap.Logger
}

// NewHandler creates a handler for rels. Records are routed by the table
// named in their event source ARN, resolved through config; records without
// an ARN are offered to every relationship.
func NewHandler(config dynamo.Config, logger *zap.Logger, rels ...Reconciler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		routes: make(map[string][]Reconciler),
		all:    rels,
		logger: logger,
	}
	for _, rel := range rels {
		table := config.TableName(rel.Spec().Child)
		h.routes[table] = append(h.routes[table], rel)
	}
	return h
}

// HandleReconcile processes a batch of stream records. It is designed to be
// used as an AWS Lambda handler. The first failing record aborts the batch so
// Lambda retries it.
func (h *Handler) HandleReconcile(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				zap.String("eventID", record.EventID),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	switch record.EventName {
	case "INSERT", "MODIFY", "REMOVE":
	default:
		return nil
	}

	rels := h.all
	if table := tableFromARN(record.EventSourceArn); table != "" {
		rels = h.routes[table]
	}

	if len(rels) == 0 {
		return nil
	}
	childID := ImageDocument(record.Change.Keys).ID()
	h.logger.Debug("child changed",
		zap.String("event", record.EventName),
		zap.String("id", childID),
	)

	for _, rel := range rels {
		spec := rel.Spec()
		oldParent := getStringAttr(record.Change.OldImage, spec.ForeignKey)
		newParent := getStringAttr(record.Change.NewImage, spec.ForeignKey)
		if record.EventName == "MODIFY" && oldParent == newParent {
			continue
		}

		for _, parentID := range affectedParents(oldParent, newParent) {
			var observed []string
			if parentID == newParent && childID != "" {
				observed = []string{childID}
			}
			if err := h.reconcile(ctx, rel, parentID, observed...); err != nil {
				return fmt.Errorf("reconcile %s %s: %w", spec.Parent, parentID, err)
			}
		}
	}
	return nil
}

func (h *Handler) reconcile(ctx context.Context, rel Reconciler, parentID string, childIDs ...string) error {
	parent, err := rel.Reconcile(ctx, parentID, childIDs...)
	if resource.IsNotFound(err) {
		h.logger.Warn("parent not found, skipping",
			zap.String("parent", rel.Spec().Parent),
			zap.String("id", parentID),
		)
		return nil
	}
	if err != nil {
		return err
	}
	h.logger.Debug("parent reconciled",
		zap.String("parent", rel.Spec().Parent),
		zap.String("id", parentID),
		zap.Strings(rel.Spec().ForeignArray, parent.Strings(rel.Spec().ForeignArray)),
	)
	return nil
}

func affectedParents(oldParent, newParent string) []string {
	var ids []string
	if oldParent != "" {
		ids = append(ids, oldParent)
	}
	if newParent != "" && newParent != oldParent {
		ids = append(ids, newParent)
	}
	return ids
}

// tableFromARN extracts the table name from a stream ARN of the form
// arn:aws:dynamodb:region:account:table/NAME/stream/LABEL.
func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	table, _, _ := strings.Cut(rest, "/")
	return table
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getStringListAttr extracts a string list attribute from a DynamoDB stream image.
func getStringListAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeList {
			var result []string
			for _, item := range v.List() {
				if item.DataType() == events.DataTypeString {
					result = append(result, item.String())
				}
			}
			return result
		}
	}
	return nil
}

// ImageDocument converts a stream image into a resource.Document. Lists of
// strings become []string; other scalars keep their stream representation
// as strings. Maps and non-string lists are skipped.
func ImageDocument(image map[string]events.DynamoDBAttributeValue) resource.Document {
	doc := make(resource.Document, len(image))
	for k, v := range image {
		switch v.DataType() {
		case events.DataTypeString:
			doc[k] = v.String()
		case events.DataTypeNumber:
			doc[k] = v.Number()
		case events.DataTypeBoolean:
			doc[k] = v.Boolean()
		case events.DataTypeList:
			doc[k] = getStringListAttr(image, k)
		}
	}
	return doc
}
