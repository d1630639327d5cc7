package di

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/pangeo-forge/aws-bakery/internal/dao/historydao"
)

func ProvideHistoryDAO(client *dynamodb.Client) *historydao.DAO {
	return historydao.New(client)
}
