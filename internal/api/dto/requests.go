package dto

// RequestRideRequest is the REST body for creating a ride.
type RequestRideRequest struct {
	PickupLatitude   float64 `json:"pickup_latitude" binding:"required"`
	PickupLongitude  float64 `json:"pickup_longitude" binding:"required"`
	DropoffLatitude  float64 `json:"dropoff_latitude" binding:"required"`
	DropoffLongitude float64 `json:"dropoff_longitude" binding:"required"`
}

// RateRideRequest is the REST body for rating a completed ride.
type RateRideRequest struct {
	Score  int    `json:"score" binding:"required,min=1,max=5"`
	Review string `json:"review,omitempty"`
}

// NearbyDriversQuery parameterizes the presence query.
type NearbyDriversQuery struct {
	Latitude  float64 `form:"lat" binding:"required"`
	Longitude float64 `form:"lon" binding:"required"`
	RadiusKM  float64 `form:"radius_km"`
}
