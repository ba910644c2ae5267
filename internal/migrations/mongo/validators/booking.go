package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"event_type_id",
			"advisor_id",
			"start_time",
			"end_time",
			"client_contact",
			"cancel_token",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"event_type_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"advisor_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"room_id": bson.M{
				"bsonType": "string",
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"client_contact": bson.M{
				"bsonType": "object",
				"required": []string{"name", "email"},
				"properties": bson.M{
					"name":  bson.M{"bsonType": "string", "minLength": 1, "maxLength": 200},
					"email": bson.M{"bsonType": "string", "minLength": 3, "maxLength": 320},
					"phone": bson.M{"bsonType": "string"},
					"notes": bson.M{"bsonType": "string", "maxLength": 2000},
				},
			},

			"cancel_token": bson.M{
				"bsonType":  "string",
				"minLength": 16,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"confirmed",
					"cancelled",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"cancelled_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var GuardValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"version"},
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "string"},
			"version": bson.M{"bsonType": "long"},
		},
	},
}
