package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamodbAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type profileStore struct {
	api   dynamodbAPI
	table string
}

// NewProfileStore keeps one item per contact keyed by contact_id.
func NewProfileStore(api dynamodbAPI, table string) (ProfileStore, error) {
	if api == nil {
		return nil, errors.New("profile store: dynamodb client is required")
	}
	if table == "" {
		return nil, errors.New("profile store: table name is required")
	}
	return &profileStore{api: api, table: table}, nil
}

func (s *profileStore) Get(ctx context.Context, contactID string) (*model.Profile, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"contact_id": &types.AttributeValueMemberS{Value: contactID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("profile store: get %s: %w", contactID, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return profileFromItem(out.Item), nil
}

// RecordTurn creates the profile on first sight, overwrites the identity
// fields that are known and bumps total_messages by one.
func (s *profileStore) RecordTurn(ctx context.Context, p model.Profile) error {
	now := time.Now().UTC().Format(time.RFC3339)

	expr := "ADD total_messages :one SET last_interaction = :now, created_at = if_not_exists(created_at, :now)"
	values := map[string]types.AttributeValue{
		":one": &types.AttributeValueMemberN{Value: "1"},
		":now": &types.AttributeValueMemberS{Value: now},
	}
	names := map[string]string{}
	for _, f := range []struct {
		attr  string
		value string
	}{
		{"name", p.Name},
		{"preferred_name", p.PreferredName},
		{"dni", p.DNI},
		{"phone", p.Phone},
		{"last_channel", p.LastChannel},
	} {
		if f.value == "" {
			continue
		}
		// name is a reserved word, so every attribute goes through a placeholder.
		expr += ", #" + f.attr + " = :" + f.attr
		names["#"+f.attr] = f.attr
		values[":"+f.attr] = &types.AttributeValueMemberS{Value: f.value}
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"contact_id": &types.AttributeValueMemberS{Value: p.ContactID},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}
	_, err := s.api.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("profile store: record turn %s: %w", p.ContactID, err)
	}
	return nil
}

func profileFromItem(item map[string]types.AttributeValue) *model.Profile {
	p := &model.Profile{
		ContactID:     attrString(item, "contact_id"),
		Name:          attrString(item, "name"),
		PreferredName: attrString(item, "preferred_name"),
		DNI:           attrString(item, "dni"),
		Phone:         attrString(item, "phone"),
		LastChannel:   attrString(item, "last_channel"),
	}
	if n, ok := item["total_messages"].(*types.AttributeValueMemberN); ok {
		p.TotalMessages, _ = strconv.ParseInt(n.Value, 10, 64)
	}
	p.LastInteraction, _ = time.Parse(time.RFC3339, attrString(item, "last_interaction"))
	p.CreatedAt, _ = time.Parse(time.RFC3339, attrString(item, "created_at"))
	return p
}

func attrString(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
