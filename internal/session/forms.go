package session

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alfredjeanlab/kgview/internal/model"
)

// AddNodeForm is the input of AddNode. GraphID may be empty to mean the
// graph on screen.
type AddNodeForm struct {
	GraphID      string `json:"graph_id"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	Name         string `json:"name" validate:"required,max=200"`
	Type         string `json:"type" validate:"required,max=64"`
	Label        string `json:"label" validate:"required,max=200"`
}

// Fields prompted for when a node click raises add-node.
var addNodeFields = []string{"name", "type", "label"}

func (f AddNodeForm) normalized() AddNodeForm {
	f.GraphID = strings.TrimSpace(f.GraphID)
	f.SourceNodeID = strings.TrimSpace(f.SourceNodeID)
	f.Name = strings.TrimSpace(f.Name)
	f.Type = strings.TrimSpace(f.Type)
	f.Label = strings.TrimSpace(f.Label)
	return f
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateForm checks a form struct and converts the failures to a
// *model.ValidationError.
func (s *Session) validateForm(form any) error {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &model.ValidationError{}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			ve.Add(fe.Field(), "is required")
		case "max":
			ve.Add(fe.Field(), "must be at most "+fe.Param()+" characters")
		default:
			ve.Add(fe.Field(), "is invalid")
		}
	}
	return ve.Err()
}
