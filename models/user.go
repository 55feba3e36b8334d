package models

// User holds the structure for the user collection in mongo
type User struct {
	ID      string      `json:"_id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
	Version int32       `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined in the user collection in mongo
type UserDetails struct {
	Email          string `json:"email" bson:"email"`
	Username       string `json:"username" bson:"username"`
	Name           string `json:"name" bson:"name"`
	Password       string `json:"password" bson:"password"`
	Role           string `json:"role" bson:"role"` // member, judge, admin
	Phone          string `json:"phone" bson:"phone"`
	Building       string `json:"building" bson:"building"`
	Flat           string `json:"flat" bson:"flat"`
	ProfilePicture string `json:"profilePicture" bson:"profilePicture"`

	ResetPasswordToken   string      `json:"resetPasswordToken,omitempty" bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires interface{} `json:"resetPasswordExpires,omitempty" bson:"resetPasswordExpires,omitempty"`

	CreatedAt interface{} `json:"createdAt" bson:"createdAt"`
	UpdatedAt interface{} `json:"updatedAt" bson:"updatedAt"`
}
