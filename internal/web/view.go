package web

import (
	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/quota"
	"github.com/vbonduro/listingwizard/internal/stage"
	"github.com/vbonduro/listingwizard/internal/wizard"
)

type stageView struct {
	Name   string       `json:"name"`
	Label  string       `json:"label"`
	Status stage.Status `json:"status"`
}

type photoView struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

type roomView struct {
	Name   string      `json:"name"`
	Photos []photoView `json:"photos"`
}

type draftView struct {
	Mode           wizard.Mode                           `json:"mode"`
	Active         int                                   `json:"active"`
	Progress       float64                               `json:"progress"`
	Stages         []stageView                           `json:"stages"`
	Fields         map[string]string                     `json:"fields"`
	Collections    map[string][]domain.Entry             `json:"collections"`
	Rooms          []roomView                            `json:"rooms"`
	Cover          *photoView                            `json:"cover"`
	Validation     map[domain.FieldKey]domain.FieldState `json:"validation"`
	PhotoRemaining int                                   `json:"photoRemaining"`
}

func (s *Server) buildView(sess *Session) draftView {
	st := sess.Wizard.State()
	v := draftView{
		Mode:           sess.Wizard.Mode(),
		Active:         st.Active,
		Progress:       float64(st.Active+1) / float64(s.schema.Len()),
		Stages:         make([]stageView, 0, s.schema.Len()),
		Fields:         st.Draft.Fields,
		Collections:    st.Draft.Collections,
		Rooms:          make([]roomView, 0, len(st.Draft.Rooms)),
		Validation:     st.Fields,
		PhotoRemaining: sess.Wizard.PhotoRemaining(),
	}
	for i, sg := range s.schema.Stages {
		v.Stages = append(v.Stages, stageView{Name: sg.Name, Label: sg.Label, Status: stage.StatusOf(s.schema, i, st)})
	}
	for _, r := range st.Draft.Rooms {
		rv := roomView{Name: r.Name, Photos: make([]photoView, 0, len(r.Photos))}
		for _, p := range r.Photos {
			rv.Photos = append(rv.Photos, toPhotoView(p))
		}
		v.Rooms = append(v.Rooms, rv)
	}
	if st.Draft.Cover != nil {
		cv := toPhotoView(*st.Draft.Cover)
		v.Cover = &cv
	}
	return v
}

func toPhotoView(a domain.Attachment) photoView {
	return photoView{Name: a.Name, Size: a.Size, MimeType: a.MimeType}
}

type uploadView struct {
	Accepted   []string  `json:"accepted"`
	Rejected   int       `json:"rejected"`
	Duplicates int       `json:"duplicates"`
	Draft      draftView `json:"draft"`
}

func names(list []domain.Attachment) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Name
	}
	return out
}

func newUploadView(res quota.Result, draft draftView) uploadView {
	return uploadView{
		Accepted:   names(res.Accepted),
		Rejected:   res.Rejected,
		Duplicates: res.Duplicates,
		Draft:      draft,
	}
}
