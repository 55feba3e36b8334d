package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Case holds the structure for the cases collection in mongo
type Case struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details CaseDetails        `json:"case" bson:"case"`
	Version int32              `json:"__v" bson:"__v"`
}

// CaseDetails holds the structure for the inner case details
type CaseDetails struct {
	Title       string   `json:"title" bson:"title"`
	Description string   `json:"description" bson:"description"`
	Category    string   `json:"category" bson:"category"` // noise, property, harassment, pets, parking, cleanliness, other
	Priority    string   `json:"priority" bson:"priority"` // low, medium, high, critical
	Tags        []string `json:"tags" bson:"tags"`

	// EvidenceRef is an opaque reference (cloudinary secure URL) to uploaded evidence;
	// EvidencePublicID is the cloudinary asset id kept so the asset can be destroyed
	// when the case is hard-deleted
	EvidenceRef      string `json:"evidenceRef,omitempty" bson:"evidenceRef,omitempty"`
	EvidencePublicID string `json:"evidencePublicId,omitempty" bson:"evidencePublicId,omitempty"`

	// FilerID is the user who filed the case, immutable once set
	FilerID string `json:"filerID" bson:"filerID"`

	// TargetInfo is the free-text description of who the case is filed against
	TargetInfo TargetInfo `json:"targetInfo" bson:"targetInfo"`

	// Status: "PendingVerification", "VerificationFailed", "TargetNotified",
	// "AwaitingResponse", "ResponseReceived", "UnderReview", "PublishedForVoting",
	// "VerdictReached", "Closed", "Rejected"
	Status string `json:"status" bson:"status"`

	Verification CaseVerification `json:"verification" bson:"verification"`

	// ResponseDeadline is set when the target is notified; once it passes without a
	// response the scheduler moves the case to AwaitingResponse
	ResponseDeadline primitive.DateTime `json:"responseDeadline,omitempty" bson:"responseDeadline,omitempty"`

	TargetResponse TargetResponse `json:"targetResponse" bson:"targetResponse"`

	Comments []Comment `json:"comments" bson:"comments"`
	Votes    []Vote    `json:"votes" bson:"votes"`

	// Verdict is the final decision, set only by a judge/admin once published
	Verdict string `json:"verdict,omitempty" bson:"verdict,omitempty"`

	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// TargetInfo holds the free-text target description supplied by the filer
type TargetInfo struct {
	Name                string `json:"name,omitempty" bson:"name,omitempty"`
	Email               string `json:"email,omitempty" bson:"email,omitempty"`
	Phone               string `json:"phone,omitempty" bson:"phone,omitempty"`
	Building            string `json:"building,omitempty" bson:"building,omitempty"`
	Flat                string `json:"flat,omitempty" bson:"flat,omitempty"`
	PhysicalDescription string `json:"physicalDescription,omitempty" bson:"physicalDescription,omitempty"`
	Location            string `json:"location,omitempty" bson:"location,omitempty"`
	IncidentTime        string `json:"incidentTime,omitempty" bson:"incidentTime,omitempty"`
	Frequency           string `json:"frequency,omitempty" bson:"frequency,omitempty"`
}

// CaseVerification records how the target identity was resolved
type CaseVerification struct {
	// Status: "pending", "auto", "verified", "rejected"
	Status           string             `json:"status" bson:"status"`
	Notes            string             `json:"notes,omitempty" bson:"notes,omitempty"`
	VerifiedTargetID string             `json:"verifiedTargetID,omitempty" bson:"verifiedTargetID,omitempty"`
	VerifiedBy       string             `json:"verifiedBy,omitempty" bson:"verifiedBy,omitempty"`
	VerifiedAt       primitive.DateTime `json:"verifiedAt,omitempty" bson:"verifiedAt,omitempty"`
}

// TargetResponse records the statement submitted by the verified target
type TargetResponse struct {
	Received    bool               `json:"received" bson:"received"`
	Text        string             `json:"text,omitempty" bson:"text,omitempty"`
	RespondedAt primitive.DateTime `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
}

// Comment is a single append-only discussion entry on a case
type Comment struct {
	Text      string             `json:"text" bson:"text"`
	AuthorID  string             `json:"authorID" bson:"authorID"`
	IsJudge   bool               `json:"isJudge" bson:"isJudge"`
	IsAdmin   bool               `json:"isAdmin" bson:"isAdmin"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// Vote is a single yes/no vote by a judge; at most one per voter per case
type Vote struct {
	Choice  string `json:"choice" bson:"choice"` // "yes" or "no"
	VoterID string `json:"voterId" bson:"voterId"`
}

// VoteTally is the aggregate vote count returned by the votes endpoint
type VoteTally struct {
	Yes   int `json:"yes"`
	No    int `json:"no"`
	Total int `json:"total"`
}
