package validators

import "go.mongodb.org/mongo-driver/bson"

var AvailabilityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"resource_id",
			"date",
			"window_start",
			"window_end",
			"slot_minutes",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  "^\\d{4}-\\d{2}-\\d{2}$",
			},

			"window_start": bson.M{
				"bsonType": "string",
				"pattern":  "^\\d{2}:\\d{2}(:\\d{2})?$",
			},

			"window_end": bson.M{
				"bsonType": "string",
				"pattern":  "^\\d{2}:\\d{2}(:\\d{2})?$",
			},

			"slot_minutes": bson.M{
				"bsonType": "int",
				"minimum":  5,
				"maximum":  480,
			},
		},
	},
}
