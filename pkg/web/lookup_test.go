package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/ChlorophyllA/skin2/pkg/derm"
	"github.com/ChlorophyllA/skin2/pkg/hospital"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHospitals struct {
	lastField string
	lastQ     string
	lastLimit int
	lastQuery hospital.Query
	err       error
}

func (f *fakeHospitals) Suggestions(_ context.Context, field, q string, limit int) ([]string, error) {
	f.lastField, f.lastQ, f.lastLimit = field, q, limit
	return []string{"北京市", "广东省"}, f.err
}

func (f *fakeHospitals) Cities(_ context.Context, province string) ([]string, error) {
	if province == "广东省" {
		return []string{"广州市", "深圳市"}, f.err
	}
	return []string{}, f.err
}

func (f *fakeHospitals) Levels(context.Context) ([]string, error) {
	return []string{"三级甲等"}, f.err
}

func (f *fakeHospitals) Search(_ context.Context, q hospital.Query) (*hospital.Result, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &hospital.Result{
		Total:   1,
		Page:    1,
		PerPage: hospital.PageSize,
		Results: []hospital.Hospital{{Province: "广东省", City: "广州市", Hospital: "中山大学附属第一医院"}},
	}, nil
}

type fakeSkin struct {
	lastPage int
	err      error
}

func (f *fakeSkin) Page(_ context.Context, page int) (*derm.Page, error) {
	f.lastPage = page
	if f.err != nil {
		return nil, f.err
	}
	return &derm.Page{
		Total: 3,
		Page:  page,
		Results: []derm.Row{{
			Columns: []string{"name"},
			Values:  map[string]any{"name": "湿疹"},
		}},
	}, nil
}

func (f *fakeSkin) Random(context.Context) (derm.Row, error) {
	return derm.Row{
		Columns: []string{"name", "symptoms"},
		Values:  map[string]any{"name": "银屑病", "symptoms": "红斑"},
	}, f.err
}

func TestLookupRoutes_NotMountedWithoutStores(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{}, nil)

	for _, path := range []string{"/api/suggestions", "/api/cities", "/api/levels", "/api/skin/page", "/api/skin/random"} {
		resp, _ := h.get(t, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestSuggestions(t *testing.T) {
	hospitals := &fakeHospitals{}
	h := newHarness(t, echoEngine(), Options{}, func(d *Deps) { d.Hospitals = hospitals })

	resp, body := h.get(t, "/api/suggestions?q=%E5%8C%97")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["北京市","广东省"]`, string(body))
	assert.Equal(t, "province", hospitals.lastField)
	assert.Equal(t, "北", hospitals.lastQ)
	assert.Equal(t, hospital.DefaultSuggestionLimit, hospitals.lastLimit)

	h.get(t, "/api/suggestions?field=hospital&limit=5")
	assert.Equal(t, "hospital", hospitals.lastField)
	assert.Equal(t, 5, hospitals.lastLimit)

	resp, body = h.get(t, "/api/suggestions?limit=many")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid limit", decodeError(t, body))
}

func TestCitiesAndLevels(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{}, func(d *Deps) { d.Hospitals = &fakeHospitals{} })

	_, body := h.get(t, "/api/cities?province=%E5%B9%BF%E4%B8%9C%E7%9C%81")
	assert.JSONEq(t, `["广州市","深圳市"]`, string(body))

	_, body = h.get(t, "/api/cities")
	assert.JSONEq(t, `[]`, string(body))

	_, body = h.get(t, "/api/levels")
	assert.JSONEq(t, `["三级甲等"]`, string(body))
}

func TestSearch(t *testing.T) {
	hospitals := &fakeHospitals{}
	h := newHarness(t, echoEngine(), Options{}, func(d *Deps) { d.Hospitals = hospitals })

	resp, body := h.post(t, "/api/search", `{"province":"广东省","departments":"皮肤科","page":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, hospital.Query{Province: "广东省", Departments: "皮肤科", Page: 2}, hospitals.lastQuery)

	var result hospital.Result
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, hospital.PageSize, result.PerPage)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "中山大学附属第一医院", result.Results[0].Hospital)

	t.Run("empty body searches everything", func(t *testing.T) {
		resp, _ := h.post(t, "/api/search", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, hospital.Query{}, hospitals.lastQuery)
	})

	t.Run("null filters are accepted", func(t *testing.T) {
		resp, _ := h.post(t, "/api/search", `{"city":null}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	for name, body := range map[string]string{
		"page zero":      `{"page":0}`,
		"page as string": `{"page":"2"}`,
		"numeric city":   `{"city":10}`,
		"not json":       `province=x`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, data := h.post(t, "/api/search", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, msgInvalidRequest, decodeError(t, data))
		})
	}
}

func TestSearch_StoreError(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{}, func(d *Deps) {
		d.Hospitals = &fakeHospitals{err: errors.New("database is locked")}
	})

	resp, body := h.post(t, "/api/search", `{}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, msgInternalError, decodeError(t, body))
}

func TestSkinRoutes(t *testing.T) {
	skin := &fakeSkin{}
	h := newHarness(t, echoEngine(), Options{}, func(d *Deps) { d.Skin = skin })

	resp, body := h.get(t, "/api/skin/page?page=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, skin.lastPage)
	assert.JSONEq(t, `{"total":3,"page":2,"results":[{"name":"湿疹"}]}`, string(body))

	h.get(t, "/api/skin/page")
	assert.Equal(t, 1, skin.lastPage)

	resp, body = h.get(t, "/api/skin/page?page=first")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid page", decodeError(t, body))

	resp, body = h.get(t, "/api/skin/random")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"name":"银屑病","symptoms":"红斑"}`, string(body))
}

func TestDisease(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{}, nil)

	resp, body := h.get(t, "/api/disease/mel")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var d derm.Disease
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, "MEL", d.Code)
	assert.NotEmpty(t, d.Name)

	resp, body = h.get(t, "/api/disease/XYZ")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Unknown disease code", decodeError(t, body))
}
