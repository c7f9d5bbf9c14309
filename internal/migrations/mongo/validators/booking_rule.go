package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingRuleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"label",
			"max_duration_minutes",
			"active",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"label": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"max_duration_minutes": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  1440,
			},

			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
