package validators

import "go.mongodb.org/mongo-driver/bson"

// Court anchors carry no data of their own. Every booking transaction
// rewrites its court's token so concurrent creates on the same court
// conflict on a single document instead of committing side by side.
var CourtAnchorValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"token"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"token": bson.M{
				"bsonType": "objectId",
			},
		},
	},
}
