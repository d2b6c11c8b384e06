package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rawconnect/marketplace/internal/geo"
)

type GeoHandler struct {
	geocoder *geo.Geocoder
}

func NewGeoHandler(geocoder *geo.Geocoder) *GeoHandler {
	return &GeoHandler{geocoder: geocoder}
}

// ReverseGeocode resolves ?lat=&lon= into a human-readable address.
func (h *GeoHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon must be numbers")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	address, err := h.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}
