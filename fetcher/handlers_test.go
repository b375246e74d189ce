package fetcher

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/groob/plist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udiddirector/udiddirector/types"
)

const profileUserAgent = "Profile/1.0 CFNetwork/1402.0.8 Darwin/22.2.0"

func testPayload() types.DevicePayload {
	return types.DevicePayload{
		UDID:       "00008020-001234567890002E",
		Product:    "iPhone10,3",
		Version:    "B1",
		Serial:     "F2LV4TESTXYZ",
		DeviceName: "Test iPhone",
	}
}

func newFlowFetcher(t *testing.T, config Config) *Fetcher {
	t.Helper()
	if config.URL == "" {
		config.URL = "https://udid.example.com"
	}
	if config.ProfilePath == "" {
		config.ProfilePath = "../enrollment.mobileconfig"
	}
	if config.Catalog == nil {
		config.Catalog = &fakeCatalog{resp: testCatalogResponse()}
	}
	if config.Done == nil {
		config.Done = func(w http.ResponseWriter, r *http.Request) {}
	}
	if config.Name == "" {
		config.Name = "Test thingy"
		config.Organization = "Acme"
		config.Description = "Testing to see if this works"
		config.PayloadIdentifier = "com.acme.test"
	}
	f, err := New(config)
	require.NoError(t, err)
	return f
}

func TestEnrollHandler_ServesRewrittenProfile(t *testing.T) {
	f := newFlowFetcher(t, Config{Query: map[string]string{"tag": "kiosk"}})

	req := httptest.NewRequest("GET", "/enroll?source=qr", nil)
	rr := httptest.NewRecorder()
	f.EnrollHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/x-apple-aspen-config; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="enrollment.mobileconfig"`, rr.Header().Get("Content-Disposition"))

	var profile types.EnrollmentProfile
	require.NoError(t, plist.Unmarshal(rr.Body.Bytes(), &profile))

	assert.Equal(t, "Test thingy", profile.PayloadDisplayName)
	assert.Equal(t, "Acme", profile.PayloadOrganization)
	assert.Equal(t, "com.acme.test", profile.PayloadIdentifier)
	assert.Equal(t, "Profile Service", profile.PayloadType)
	assert.Equal(t, strings.ToUpper(profile.PayloadUUID), profile.PayloadUUID)
	assert.Contains(t, profile.PayloadContent.DeviceAttributes, "UDID")

	confirm, err := url.Parse(profile.PayloadContent.URL)
	require.NoError(t, err)
	assert.Equal(t, "udid.example.com", confirm.Host)
	assert.Equal(t, "/confirm", confirm.Path)
	assert.Equal(t, "kiosk", confirm.Query().Get("tag"))
	assert.Equal(t, "qr", confirm.Query().Get("source"))

	flowID := confirm.Query().Get("flow_id")
	require.Len(t, flowID, TokenLength)
	assert.True(t, f.flows.Valid(flowID))
}

func TestConfirmHandler_RedirectsEncodedPayload(t *testing.T) {
	f := newFlowFetcher(t, Config{})

	payload := testPayload()
	body, err := plist.Marshal(&payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/confirm?flow_id=abc123", strings.NewReader(string(body)))
	rr := httptest.NewRecorder()
	f.ConfirmHandler(rr, req)

	require.Equal(t, http.StatusMovedPermanently, rr.Code)

	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/enrollment", location.Path)
	assert.Equal(t, "abc123", location.Query().Get("flow_id"))

	// the encoded payload round-trips to the identical document
	raw, err := base64.StdEncoding.DecodeString(location.Query().Get("data"))
	require.NoError(t, err)
	var decoded types.DevicePayload
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestConfirmHandler_EmptyBody(t *testing.T) {
	f := newFlowFetcher(t, Config{})

	req := httptest.NewRequest("POST", "/confirm", nil)
	rr := httptest.NewRecorder()
	f.ConfirmHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing device payload")
}

func TestConfirmHandler_MalformedBody(t *testing.T) {
	f := newFlowFetcher(t, Config{})

	req := httptest.NewRequest("POST", "/confirm", strings.NewReader("not a plist"))
	rr := httptest.NewRecorder()
	f.ConfirmHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func encodedPayloadQuery(t *testing.T, payload types.DevicePayload) string {
	t.Helper()
	raw, err := json.Marshal(&payload)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestEnrollmentHandler_StoresDeviceAndRedirects(t *testing.T) {
	f := newFlowFetcher(t, Config{})

	data := encodedPayloadQuery(t, testPayload())
	req := httptest.NewRequest("GET", "/enrollment?data="+url.QueryEscape(data)+"&flow_id=abc123", nil)
	req.Header.Set("User-Agent", profileUserAgent)
	rr := httptest.NewRecorder()
	f.EnrollmentHandler(rr, req)

	require.Equal(t, http.StatusMovedPermanently, rr.Code)

	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/final", location.Path)
	assert.Equal(t, "abc123", location.Query().Get("flow_id"))
	assert.Empty(t, location.Query().Get("data"))

	id := location.Query().Get("id")
	require.Len(t, id, TokenLength)

	device, ok := f.devices.Get(id)
	require.True(t, ok)
	assert.Equal(t, "00008020-001234567890002E", device.UDID)
	require.NotNil(t, device.IOS.Version)
	assert.Equal(t, "16.0.1", *device.IOS.Version)
}

func TestEnrollmentHandler_RequiresProfileContext(t *testing.T) {
	f := newFlowFetcher(t, Config{})

	data := encodedPayloadQuery(t, testPayload())
	req := httptest.NewRequest("GET", "/enrollment?data="+url.QueryEscape(data), nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X)")
	rr := httptest.NewRecorder()
	f.EnrollmentHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, f.devices.Len())
}

func TestEnrollmentHandler_MissingData(t *testing.T) {
	f := newFlowFetcher(t, Config{})

	req := httptest.NewRequest("GET", "/enrollment", nil)
	req.Header.Set("User-Agent", profileUserAgent)
	rr := httptest.NewRecorder()
	f.EnrollmentHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEnrollmentHandler_CatalogFailure(t *testing.T) {
	catalog := &fakeCatalog{err: assert.AnError}
	f := newFlowFetcher(t, Config{Catalog: catalog})

	data := encodedPayloadQuery(t, testPayload())
	req := httptest.NewRequest("GET", "/enrollment?data="+url.QueryEscape(data), nil)
	req.Header.Set("User-Agent", profileUserAgent)
	rr := httptest.NewRecorder()
	f.EnrollmentHandler(rr, req)

	// the raw resolution error is the response body
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "firmware catalog lookup")
	assert.Equal(t, 0, f.devices.Len())
}

func TestEnrollmentHandler_DirectMode(t *testing.T) {
	var seen *types.DeviceIdentity
	f := newFlowFetcher(t, Config{
		Mode:    ModeDirect,
		DoneURL: "https://udid.example.com/landing",
		Done: func(w http.ResponseWriter, r *http.Request) {
			if device, ok := DeviceFromContext(r.Context()); ok {
				seen = &device
			}
		},
	})

	data := encodedPayloadQuery(t, testPayload())
	req := httptest.NewRequest("GET", "/enrollment?data="+url.QueryEscape(data), nil)
	req.Header.Set("User-Agent", profileUserAgent)
	rr := httptest.NewRecorder()
	f.EnrollmentHandler(rr, req)

	require.Equal(t, http.StatusMovedPermanently, rr.Code)
	assert.Equal(t, "https://udid.example.com/landing", rr.Header().Get("Location"))

	require.NotNil(t, seen)
	assert.Equal(t, "00008020-001234567890002E", seen.UDID)

	// nothing is parked in the registry in direct mode
	assert.Equal(t, 0, f.devices.Len())
}

func TestFinalHandler_HandsOffDeviceOnce(t *testing.T) {
	var seen *types.DeviceIdentity
	f := newFlowFetcher(t, Config{
		Done: func(w http.ResponseWriter, r *http.Request) {
			if device, ok := DeviceFromContext(r.Context()); ok {
				seen = &device
			}
			w.WriteHeader(http.StatusOK)
		},
	})

	flowID, err := f.flows.Issue()
	require.NoError(t, err)
	id, err := f.devices.NewID()
	require.NoError(t, err)
	f.devices.Put(id, types.DeviceIdentity{UDID: "00008020-001234567890002E"})

	req := httptest.NewRequest("GET", "/final?id="+id+"&flow_id="+flowID, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X)")
	rr := httptest.NewRecorder()
	f.FinalHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "00008020-001234567890002E", seen.UDID)

	// token and record are both retired
	assert.False(t, f.flows.Valid(flowID))
	_, ok := f.devices.Get(id)
	assert.False(t, ok)

	// replaying the same flow is rejected and the callback stays silent
	seen = nil
	rr = httptest.NewRecorder()
	f.FinalHandler(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, seen)
}

func TestFinalHandler_ProfileContextSeesNothing(t *testing.T) {
	called := false
	f := newFlowFetcher(t, Config{
		Done: func(w http.ResponseWriter, r *http.Request) {
			called = true
		},
	})

	flowID, err := f.flows.Issue()
	require.NoError(t, err)
	id, err := f.devices.NewID()
	require.NoError(t, err)
	f.devices.Put(id, types.DeviceIdentity{UDID: "00008020-001234567890002E"})

	req := httptest.NewRequest("GET", "/final?id="+id+"&flow_id="+flowID, nil)
	req.Header.Set("User-Agent", profileUserAgent)
	rr := httptest.NewRecorder()
	f.FinalHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.False(t, called)

	// the flow is still open for the browser to finish
	assert.True(t, f.flows.Valid(flowID))
}

func TestFinalHandler_UnknownDeviceID(t *testing.T) {
	f := newFlowFetcher(t, Config{})

	flowID, err := f.flows.Issue()
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/final?id=doesnotexist1234&flow_id="+flowID, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rr := httptest.NewRecorder()
	f.FinalHandler(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDevicesHandler_ListsPendingDevices(t *testing.T) {
	f := newFlowFetcher(t, Config{})
	f.devices.Put("a", types.DeviceIdentity{UDID: "udid-a", Model: "iPhone10,3"})

	req := httptest.NewRequest("GET", "/devices", nil)
	rr := httptest.NewRecorder()
	f.DevicesHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var devices []types.DeviceIdentity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "udid-a", devices[0].UDID)
}
