package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Well-known field names used by like/unlike.
const (
	FieldLikesCount = "likesCount"
	FieldLikedBy    = "likedBy"
)
