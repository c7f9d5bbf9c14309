package validators

import "go.mongodb.org/mongo-driver/bson"

var PrincipalValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"role",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"role": bson.M{
				"bsonType": "string",
				"enum": []string{
					"member",
					"admin",
				},
			},
		},
	},
}
