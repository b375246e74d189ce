package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/udiddirector/udiddirector/fetcher"
	"github.com/udiddirector/udiddirector/ipsw"
	"github.com/udiddirector/udiddirector/log"
	"github.com/udiddirector/udiddirector/settings"
	"github.com/udiddirector/udiddirector/utils"
)

// ServerURL is the externally reachable base URL for this server
var ServerURL string

// CatalogURL is the firmware catalog API endpoint
var CatalogURL string

// Sign is whether profiles should be signed (they really should)
var Sign bool

// KeyPassword is the password for the private key or p12 file
var KeyPassword string

// KeyPath is the path for the private key
var KeyPath string

// CertPath is the path for the signing cert or p12 file
var CertPath string

// ProfilePath is the path for the enrollment profile template
var ProfilePath string

func main() {
	var port string
	var debugMode bool
	var logLevel string
	flag.BoolVar(&debugMode, "debug", false, "Enable debug output")
	flag.StringVar(&port, "port", "8000", "Port number to run udiddirector on.")
	flag.StringVar(&logLevel, "loglevel", "warn", "Log level. One of debug, info, warn, error")
	flag.StringVar(&ServerURL, "url", "", "Externally reachable base URL for this server")
	flag.StringVar(&CatalogURL, "catalogurl", ipsw.DefaultBaseURL, "Firmware catalog API URL")
	flag.BoolVar(&Sign, "sign", false, "Sign enrollment profiles prior to serving them.")
	flag.StringVar(&KeyPassword, "password", "", "Password to read the signing key (optional) or p12 file.")
	flag.StringVar(&KeyPath, "private-key", "", "Path to the signing private key. Don't use with p12 file.")
	flag.StringVar(&CertPath, "cert", "", "Path to the signing certificate or p12 file.")
	flag.StringVar(&ProfilePath, "enrollment-profile", "enrollment.mobileconfig", "Path to the enrollment profile template.")

	flag.Parse()

	if ServerURL == "" {
		log.Fatal("Server URL missing. Exiting.")
	}

	ipsw.InitClient(utils.CatalogURL())
	catalog, err := ipsw.GlobalClient()
	if err != nil {
		log.Fatal(err)
	}

	settingsDict := settings.LoadSettings()

	config := fetcher.Config{
		Name:              settingsDict.Name,
		Organization:      settingsDict.Organization,
		Description:       settingsDict.Description,
		PayloadIdentifier: settingsDict.PayloadIdentifier,
		URL:               utils.ServerURL(),
		Query:             settingsDict.Query,
		ProfilePath:       utils.EnrollmentProfile(),
		Mode:              fetcher.Mode(settingsDict.Mode),
		DoneURL:           settingsDict.DoneURL,
		Done:              deviceJSONHandler,
		Catalog:           catalog,
	}

	if utils.Sign() {
		signer, err := fetcher.NewProfileSigner(utils.CertPath(), utils.KeyPath(), utils.KeyPassword())
		if err != nil {
			log.Fatal(err)
		}
		config.Signer = signer
	}

	f, err := fetcher.New(config)
	if err != nil {
		log.Fatal(err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/enroll", f.EnrollHandler).Methods("GET")
	r.HandleFunc("/confirm", f.ConfirmHandler).Methods("POST")
	r.HandleFunc("/enrollment", f.EnrollmentHandler).Methods("GET")
	r.HandleFunc("/final", f.FinalHandler).Methods("GET")
	r.HandleFunc("/devices", utils.BasicAuth(f.DevicesHandler)).Methods("GET")
	r.HandleFunc("/healthcheck", fetcher.HealthCheckHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	http.Handle("/", r)

	f.Metrics()

	fmt.Println("udiddirector is running, hold onto your butts...")

	log.Error(http.ListenAndServe(":"+port, nil))
}

// deviceJSONHandler is the default completion callback. It renders the
// resolved device identity attached to the request as indented JSON.
func deviceJSONHandler(w http.ResponseWriter, r *http.Request) {
	device, ok := fetcher.DeviceFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	output, err := json.MarshalIndent(&device, "", "    ")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(output); err != nil {
		log.Error(err)
	}
}
