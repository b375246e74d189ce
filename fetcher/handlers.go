package fetcher

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/fullsailor/pkcs7"
	"github.com/groob/plist"
	"github.com/pkg/errors"
	"gopkg.in/ajg/form.v1"

	"github.com/udiddirector/udiddirector/types"
)

// enrollmentQuery carries the encoded device payload between the confirm
// and enrollment hops.
type enrollmentQuery struct {
	Data string `form:"data"`
}

// EnrollHandler starts a flow: it issues a flow token, builds the
// enrollment profile pointing at /confirm and serves it as an attachment.
func (f *Fetcher) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	token, err := f.flows.Issue()
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := url.Values{}
	query.Set("flow_id", token)
	for k, v := range f.config.Query {
		query.Set(k, v)
	}
	forwardQuery(query, r.URL.Query())

	confirm, err := f.endpointURL("confirm", query)
	if err != nil {
		ErrorLogger(LogHolder{FlowID: token, Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	profile, err := f.buildProfile(confirm.String())
	if err != nil {
		ErrorLogger(LogHolder{FlowID: token, Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ProfilesGenerated.Inc()
	InfoLogger(LogHolder{FlowID: token, Message: "Issued enrollment profile"})

	w.Header().Set("Content-Type", "application/x-apple-aspen-config; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="enrollment.mobileconfig"`)
	if _, err := w.Write(profile); err != nil {
		ErrorLogger(LogHolder{FlowID: token, Message: err.Error()})
	}
}

// ConfirmHandler receives the raw identity document the device posts back
// after installing the profile and redirects it, base64-encoded, to
// /enrollment.
func (f *Fetcher) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if len(body) == 0 {
		WarnLogger(LogHolder{Message: "Confirm request with empty body"})
		http.Error(w, "missing device payload", http.StatusBadRequest)
		return
	}

	payload, err := parseDevicePayload(body)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		http.Error(w, "unable to parse device payload", http.StatusBadRequest)
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		ErrorLogger(LogHolder{DeviceUDID: payload.UDID, Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query, err := form.EncodeToValues(&enrollmentQuery{
		Data: base64.StdEncoding.EncodeToString(raw),
	})
	if err != nil {
		ErrorLogger(LogHolder{DeviceUDID: payload.UDID, Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	forwardQuery(query, r.URL.Query())

	endpoint, err := f.endpointURL("enrollment", query)
	if err != nil {
		ErrorLogger(LogHolder{DeviceUDID: payload.UDID, Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	DebugLogger(LogHolder{DeviceUDID: payload.UDID, Product: payload.Product, Message: "Confirmed device payload"})
	http.Redirect(w, r, endpoint.String(), http.StatusMovedPermanently)
}

// EnrollmentHandler decodes the device payload, resolves the device
// identity against the firmware catalog and hands it off according to the
// configured mode.
func (f *Fetcher) EnrollmentHandler(w http.ResponseWriter, r *http.Request) {
	if !isProfileContext(r) {
		WarnLogger(LogHolder{Message: "Invalid enrollment request"})
		http.Error(w, "enrollment requires a configuration profile context", http.StatusBadRequest)
		return
	}

	encoded := r.URL.Query().Get("data")
	if encoded == "" {
		http.Error(w, "missing data parameter", http.StatusBadRequest)
		return
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		http.Error(w, "malformed data parameter", http.StatusBadRequest)
		return
	}

	var payload types.DevicePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		http.Error(w, "malformed device payload", http.StatusBadRequest)
		return
	}

	identity, err := f.Resolve(payload, r.UserAgent())
	if err != nil {
		ResolveFailures.Inc()
		ErrorLogger(LogHolder{DeviceUDID: payload.UDID, Product: payload.Product, BuildID: payload.Version, Message: err.Error()})
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(err.Error()))
		return
	}

	DevicesResolved.Inc()
	InfoLogger(LogHolder{DeviceUDID: identity.UDID, Product: identity.Model, BuildID: payload.Version, Message: "Resolved device identity"})

	if f.config.Mode == ModeDirect {
		f.config.Done(w, r.WithContext(NewDeviceContext(r.Context(), identity)))
		http.Redirect(w, r, f.config.DoneURL, http.StatusMovedPermanently)
		return
	}

	id, err := f.devices.NewID()
	if err != nil {
		ErrorLogger(LogHolder{DeviceUDID: identity.UDID, Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	f.devices.Put(id, identity)

	query := url.Values{}
	query.Set("id", id)
	for k, vs := range r.URL.Query() {
		// the decoded payload is not carried past this hop
		if k == "data" {
			continue
		}
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	endpoint, err := f.endpointURL("final", query)
	if err != nil {
		ErrorLogger(LogHolder{DeviceUDID: identity.UDID, Message: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, endpoint.String(), http.StatusMovedPermanently)
}

// FinalHandler validates the flow token, hands the resolved identity to
// the completion callback and retires both registry entries.
func (f *Fetcher) FinalHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	flowID := r.URL.Query().Get("flow_id")

	if id == "" || !f.flows.Valid(flowID) {
		WarnLogger(LogHolder{FlowID: flowID, Message: "Rejecting final request with invalid flow token"})
		http.Error(w, "invalid or already used flow token", http.StatusBadRequest)
		return
	}

	if isProfileContext(r) {
		// The profile-installation agent must never see the resolved
		// identity; it only needs the request to terminate.
		w.WriteHeader(http.StatusOK)
		return
	}

	device, ok := f.devices.Get(id)
	if !ok {
		WarnLogger(LogHolder{FlowID: flowID, Message: "Unknown device id at final step"})
		http.Error(w, "unknown device id", http.StatusNotFound)
		return
	}

	f.devices.Delete(id)
	f.flows.Consume(flowID)

	InfoLogger(LogHolder{FlowID: flowID, DeviceUDID: device.UDID, Message: "Completing enrollment flow"})
	f.config.Done(w, r.WithContext(NewDeviceContext(r.Context(), device)))
}

// DevicesHandler lists the identities currently awaiting final handoff.
func (f *Fetcher) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	devices := f.devices.All()

	output, err := json.MarshalIndent(&devices, "", "    ")
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(output); err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
	}
}

// HealthCheckHandler is a liveness endpoint.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// parseDevicePayload parses the posted identity document. Devices wrap
// the attribute plist in a PKCS#7 signature, so a bare plist parse gets a
// signed-envelope fallback.
func parseDevicePayload(body []byte) (types.DevicePayload, error) {
	var payload types.DevicePayload
	if err := plist.Unmarshal(body, &payload); err == nil {
		return payload, nil
	}

	p7, err := pkcs7.Parse(body)
	if err != nil {
		return payload, errors.Wrap(err, "parsing device payload")
	}
	if err := plist.Unmarshal(p7.Content, &payload); err != nil {
		return payload, errors.Wrap(err, "parsing signed device payload")
	}
	return payload, nil
}

func forwardQuery(dst url.Values, src url.Values) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
