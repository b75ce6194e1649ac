package handler

import (
	"bytes"
	"encoding/json"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/page-builder/internal/blocktype"
	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/service"
)

// validate runs v.Validate and maps failures to InvalidInput.
func validate(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return service.Invalid(err.Error())
	}
	return nil
}

// isJSONNull reports an absent or literal null raw value.
func isJSONNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

var dataPresent = validation.By(func(value any) error {
	raw, _ := value.(json.RawMessage)
	if isJSONNull(raw) {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
})

// createBlockRequest is the body of POST /<route>/create.
type createBlockRequest struct {
	BlockOrder *int            `json:"blockOrder"`
	BlockType  string          `json:"blockType"`
	Data       json.RawMessage `json:"data"`
}

func (r createBlockRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BlockType, validation.Required),
		validation.Field(&r.BlockOrder, validation.NotNil, validation.Min(0)),
		validation.Field(&r.Data, dataPresent),
	)
}

// editBlockRequest is the body of PATCH /<route>/edit.  BlockType is
// optional; when sent it must name the route's kind.
type editBlockRequest struct {
	BlockType string          `json:"blockType"`
	Data      json.RawMessage `json:"data"`
}

func (r editBlockRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Data, dataPresent),
	)
}

// blockData decodes a data field into the shape the kind stores: an
// account list for list kinds, an object otherwise.
func blockData(kind blocktype.Kind, raw json.RawMessage) (model.Payload, []model.SocialAccount, error) {
	if kind.Storage == blocktype.GlobalList {
		var accounts []model.SocialAccount
		if err := json.Unmarshal(raw, &accounts); err != nil {
			return nil, nil, service.Invalid("data must be an array of accounts")
		}
		if err := validateAccounts(accounts); err != nil {
			return nil, nil, err
		}
		return nil, accounts, nil
	}
	var data model.Payload
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return nil, nil, service.Invalid("data must be an object")
	}
	return data, nil, nil
}

type accountRule struct{ a *model.SocialAccount }

func (r accountRule) Validate() error {
	return validation.ValidateStruct(r.a,
		validation.Field(&r.a.Platform, validation.Required),
		validation.Field(&r.a.AccountURL, validation.Required),
	)
}

func validateAccounts(accounts []model.SocialAccount) error {
	if len(accounts) == 0 {
		return service.Invalid("data: at least one account is required")
	}
	for i := range accounts {
		accounts[i].Platform = strings.TrimSpace(accounts[i].Platform)
		if err := validate(accountRule{&accounts[i]}); err != nil {
			return err
		}
	}
	return nil
}

// socialAccountsRequest is the body of POST /social/create.
type socialAccountsRequest struct {
	Data []model.SocialAccount `json:"data"`
}

// socialLinkRequest is the body of POST /social/update: the platforms to
// show on the page.
type socialLinkRequest struct {
	BlockOrder *int     `json:"blockOrder"`
	Data       []string `json:"data"`
}

func (r socialLinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BlockOrder, validation.NotNil, validation.Min(0)),
		validation.Field(&r.Data, validation.Required, validation.Each(validation.Required)),
	)
}

// insertGlobalRequest is the body of POST /page/insert-global-block.
type insertGlobalRequest struct {
	BlockType  string `json:"blockType"`
	BlockOrder *int   `json:"blockOrder"`
	Data       struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (r insertGlobalRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BlockType, validation.Required),
		validation.Field(&r.BlockOrder, validation.NotNil, validation.Min(0)),
	)
}

func (r insertGlobalRequest) entryID() (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(r.Data.ID)
	if err != nil {
		return primitive.NilObjectID, service.Invalid("data.id must be a global entry id")
	}
	return id, nil
}

// reorderRequest is the body of POST /page/page-reorder.
type reorderRequest struct {
	Data []service.OrderItem `json:"data"`
}

func (r reorderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Data, validation.NotNil),
	)
}

// createPageRequest is the body of POST /page/create.
type createPageRequest struct {
	Title string `json:"title"`
}

func (r createPageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

// metadataRequest is the body of POST /content-block/create.
type metadataRequest struct {
	model.BlockMetadata
}

func (r metadataRequest) Validate() error {
	m := r.BlockMetadata
	return validation.ValidateStruct(&m,
		validation.Field(&m.BlockType, validation.Required),
		validation.Field(&m.Title, validation.Required),
		validation.Field(&m.BlockLimit, validation.Min(model.Unlimited)),
	)
}
