package cfn

// Intrinsic function helpers. Each returns the JSON shape CloudFormation
// expects for the corresponding Fn:: form.

func Ref(logicalID string) map[string]interface{} {
	return map[string]interface{}{"Ref": logicalID}
}

func GetAtt(logicalID, attribute string) map[string]interface{} {
	return map[string]interface{}{"Fn::GetAtt": []string{logicalID, attribute}}
}

func Sub(template string) map[string]interface{} {
	return map[string]interface{}{"Fn::Sub": template}
}

func Join(separator string, parts ...interface{}) map[string]interface{} {
	return map[string]interface{}{"Fn::Join": []interface{}{separator, parts}}
}

func Select(index int, list interface{}) map[string]interface{} {
	return map[string]interface{}{"Fn::Select": []interface{}{index, list}}
}

func GetAZs() map[string]interface{} {
	return map[string]interface{}{"Fn::GetAZs": ""}
}
